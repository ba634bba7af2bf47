package emotion

import (
	"strings"
	"unicode"
)

// Label 表示情绪分类器可以输出的标签（GoEmotions 标签集）。
type Label string

const (
	Admiration     Label = "admiration"
	Amusement      Label = "amusement"
	Anger          Label = "anger"
	Annoyance      Label = "annoyance"
	Approval       Label = "approval"
	Caring         Label = "caring"
	Confusion      Label = "confusion"
	Curiosity      Label = "curiosity"
	Desire         Label = "desire"
	Disappointment Label = "disappointment"
	Disapproval    Label = "disapproval"
	Disgust        Label = "disgust"
	Embarrassment  Label = "embarrassment"
	Excitement     Label = "excitement"
	Fear           Label = "fear"
	Gratitude      Label = "gratitude"
	Grief          Label = "grief"
	Joy            Label = "joy"
	Love           Label = "love"
	Nervousness    Label = "nervousness"
	Optimism       Label = "optimism"
	Pride          Label = "pride"
	Realization    Label = "realization"
	Relief         Label = "relief"
	Remorse        Label = "remorse"
	Sadness        Label = "sadness"
	Surprise       Label = "surprise"
	Neutral        Label = "neutral"
)

// Labels 列出全部合法标签。
var Labels = []Label{
	Admiration, Amusement, Anger, Annoyance, Approval, Caring, Confusion, Curiosity, Desire,
	Disappointment, Disapproval, Disgust, Embarrassment, Excitement, Fear, Gratitude, Grief, Joy,
	Love, Nervousness, Optimism, Pride, Realization, Relief, Remorse, Sadness, Surprise, Neutral,
}

var labelSet = func() map[Label]struct{} {
	set := make(map[Label]struct{}, len(Labels))
	for _, l := range Labels {
		set[l] = struct{}{}
	}
	return set
}()

// ParseLabel 规范化模型输出的标签，未知标签返回 false。
func ParseLabel(raw string) (Label, bool) {
	label := Label(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := labelSet[label]; !ok {
		return "", false
	}
	return label, true
}

// Decision 给出情绪识别结果以及置信度。
type Decision struct {
	Emotion Label
	Score   float64
	Hits    int
}

var keywordBuckets = map[Label][]string{
	Joy: {
		"happy", "glad", "great day", "wonderful", "awesome", "amazing", "delighted", "cheerful",
		"good news", "so good", "yay", "enjoy", "fantastic",
	},
	Sadness: {
		"sad", "lonely", "alone", "depressed", "down", "cry", "crying", "empty", "hopeless",
		"miserable", "heartbroken", "unhappy", "hurt", "lost", "tired of everything",
	},
	Anger: {
		"angry", "furious", "mad", "rage", "hate", "pissed", "fed up", "outraged", "livid",
	},
	Annoyance: {
		"annoyed", "annoying", "irritated", "frustrated", "sick of",
	},
	Fear: {
		"afraid", "scared", "terrified", "frightened", "panic", "fear", "unsafe",
	},
	Nervousness: {
		"nervous", "anxious", "anxiety", "worried", "worry", "stressed", "overwhelmed", "on edge",
	},
	Love: {
		"love", "adore", "in love", "my partner", "crush", "cherish",
	},
	Surprise: {
		"surprised", "shocked", "unexpected", "can't believe", "no way", "wow",
	},
	Disgust: {
		"disgusted", "gross", "disgusting", "revolting",
	},
	Gratitude: {
		"thank you", "thanks", "grateful", "appreciate",
	},
	Grief: {
		"passed away", "died", "funeral", "grieving", "lost my",
	},
	Remorse: {
		"sorry", "regret", "my fault", "guilty", "ashamed",
	},
	Optimism: {
		"hopeful", "looking forward", "better tomorrow", "it will be fine", "optimistic",
	},
	Relief: {
		"relieved", "relief", "finally over",
	},
	Confusion: {
		"confused", "don't understand", "not sure", "makes no sense",
	},
}

// exclamationBoost 放大带感叹号文本中的强情绪。
var exclamationBoost = map[Label]int{
	Joy:      1,
	Anger:    1,
	Surprise: 2,
}

// Analyze 基于关键词估计文本情绪。没有命中任何关键词时返回 neutral。
func Analyze(text string) Decision {
	normalized := normalize(text)
	if strings.TrimSpace(normalized) == "" {
		return Decision{Emotion: Neutral, Score: 1}
	}

	scores := make(map[Label]int)
	total := 0
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if containsPhrase(normalized, word) {
				scores[label] += 3
				total += 3
			}
		}
	}

	if total > 0 {
		if exclamations := strings.Count(text, "!"); exclamations > 0 {
			for label, boost := range exclamationBoost {
				if scores[label] > 0 {
					scores[label] += exclamations * boost
					total += exclamations * boost
				}
			}
		}
	}

	best, bestScore := Neutral, 0
	for _, label := range Labels {
		// 按 Labels 顺序遍历，得分相同时结果稳定。
		if s := scores[label]; s > bestScore {
			best, bestScore = label, s
		}
	}

	if bestScore == 0 {
		return Decision{Emotion: Neutral, Score: 1}
	}

	return Decision{
		Emotion: best,
		Score:   float64(bestScore) / float64(total),
		Hits:    bestScore / 3,
	}
}

func normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	lowered = strings.ReplaceAll(lowered, "’", "'")
	return " " + strings.Join(strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	}), " ") + " "
}

// containsPhrase 只匹配完整单词，避免 "mad" 命中 "made"。
func containsPhrase(normalized, phrase string) bool {
	return strings.Contains(normalized, " "+phrase+" ")
}
