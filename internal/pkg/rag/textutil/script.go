package textutil

import "unicode"

// Script 表示文本的主要书写系统。
type Script string

const (
	ScriptLatin    Script = "latin"
	ScriptCyrillic Script = "cyrillic"
	ScriptGreek    Script = "greek"
	ScriptHan      Script = "han"
	ScriptKana     Script = "kana"
	ScriptHangul   Script = "hangul"
	ScriptThai     Script = "thai"
	ScriptLao      Script = "lao"
	ScriptKhmer    Script = "khmer"
	ScriptMyanmar  Script = "myanmar"
	ScriptArabic   Script = "arabic"
	ScriptHebrew   Script = "hebrew"
	ScriptDeva     Script = "devanagari"
	ScriptUnknown  Script = "unknown"
)

var scriptTables = []struct {
	script Script
	table  *unicode.RangeTable
}{
	{ScriptLatin, unicode.Latin},
	{ScriptCyrillic, unicode.Cyrillic},
	{ScriptGreek, unicode.Greek},
	{ScriptHan, unicode.Han},
	{ScriptKana, unicode.Hiragana},
	{ScriptKana, unicode.Katakana},
	{ScriptHangul, unicode.Hangul},
	{ScriptThai, unicode.Thai},
	{ScriptLao, unicode.Lao},
	{ScriptKhmer, unicode.Khmer},
	{ScriptMyanmar, unicode.Myanmar},
	{ScriptArabic, unicode.Arabic},
	{ScriptHebrew, unicode.Hebrew},
	{ScriptDeva, unicode.Devanagari},
}

// windowScripts 是不能按空白分隔的句子切分的书写系统。
var windowScripts = map[Script]bool{
	ScriptHan:     true,
	ScriptKana:    true,
	ScriptHangul:  true,
	ScriptThai:    true,
	ScriptLao:     true,
	ScriptKhmer:   true,
	ScriptMyanmar: true,
	ScriptArabic:  true,
	ScriptHebrew:  true,
}

var scriptLanguages = map[Script]string{
	ScriptLatin:    "en",
	ScriptCyrillic: "ru",
	ScriptGreek:    "el",
	ScriptHan:      "zh",
	ScriptKana:     "ja",
	ScriptHangul:   "ko",
	ScriptThai:     "th",
	ScriptLao:      "lo",
	ScriptKhmer:    "km",
	ScriptMyanmar:  "my",
	ScriptArabic:   "ar",
	ScriptHebrew:   "he",
	ScriptDeva:     "hi",
}

// ScriptCounts 统计文本中各书写系统的字母数量。
func ScriptCounts(text string) (map[Script]int, int) {
	counts := make(map[Script]int)
	total := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		matched := false
		for _, st := range scriptTables {
			if unicode.Is(st.table, r) {
				counts[st.script]++
				matched = true
				break
			}
		}
		if !matched {
			counts[ScriptUnknown]++
		}
	}
	return counts, total
}

// DominantScript 返回字母数量最多的书写系统。
func DominantScript(text string) Script {
	counts, total := ScriptCounts(text)
	if total == 0 {
		return ScriptUnknown
	}
	// 日文通常混合汉字和假名，出现假名即视为日文。
	if counts[ScriptKana] > 0 && counts[ScriptKana]+counts[ScriptHan] > total/2 {
		return ScriptKana
	}
	best, bestCount := ScriptUnknown, 0
	for _, st := range scriptTables {
		if c := counts[st.script]; c > bestCount {
			best, bestCount = st.script, c
		}
	}
	return best
}

// IsWindowScript 判断文本是否以连续书写或从右到左书写系统为主。
// 超过一半的字母属于这些书写系统时返回 true。
func IsWindowScript(text string) bool {
	counts, total := ScriptCounts(text)
	if total == 0 {
		return false
	}
	window := 0
	for script, c := range counts {
		if windowScripts[script] {
			window += c
		}
	}
	return window*2 > total
}

// DetectLanguage 根据主要书写系统推断语言代码，无法判断时返回 "und"。
func DetectLanguage(text string) string {
	if lang, ok := scriptLanguages[DominantScript(text)]; ok {
		return lang
	}
	return "und"
}
