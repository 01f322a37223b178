package i18n

import "strings"

// Language is a supported display language tag.
type Language string

const (
	Korean  Language = "ko"
	English Language = "en"
)

// Default is the language a new user starts with.
const Default = Korean

// Parse maps a language tag (e.g. "en", "en-US", "ko_KR") to a supported
// Language. Unknown tags fall back to Default.
func Parse(tag string) Language {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	switch Language(tag) {
	case Korean, English:
		return Language(tag)
	default:
		return Default
	}
}

// Toggle switches between the two supported languages.
func Toggle(lang Language) Language {
	if lang == English {
		return Korean
	}
	return English
}

// Valid reports whether lang is one of the supported languages.
func (l Language) Valid() bool {
	return l == Korean || l == English
}

// MetricLabels holds the display label for each of the six skin metrics.
type MetricLabels struct {
	Hydration    string
	Oiliness     string
	Troubles     string
	Pigmentation string
	Pores        string
	Wrinkles     string
}

// Strings is the complete set of user-facing strings for one language.
type Strings struct {
	Title          string
	HeroTitle      string
	HeroSubtitle   string
	AnalyzeMySkin  string
	TakePhoto      string
	ReadyTitle     string
	ReadySubtitle  string
	GoBack         string
	CameraDenied   string
	NotAnImage     string
	ImageTooLarge  string
	DownloadFailed string

	AnalyzingTitle    string
	AnalyzingSubtitle string
	AnalysisInFlight  string
	AnalysisFailed    string

	ReportTitle          string
	AnalysisDate         string
	SkinType             string
	ScoreLabel           string
	HealthWebTitle       string
	DetailedMetricsTitle string
	AIInsightTitle       string
	MorningRoutine       string
	EveningRoutine       string
	BestMatches          string
	NewAnalysis          string
	DisclaimerTitle      string
	DisclaimerText       string
	Metrics              MetricLabels

	ResetDone       string
	LanguageChanged string
	SwitchLanguage  string
	Help            string

	// Instruction is appended to the model prompt so that free-text fields
	// come back in this language.
	Instruction string
}

var tables = map[Language]Strings{
	Korean: {
		Title:          "SkinLog AI",
		HeroTitle:      "AI로 확인하는. 나의 피부 건강",
		HeroSubtitle:   "사진 한 장으로 수분, 유분, 트러블, 색소침착, 모공, 주름을 분석하고 맞춤 루틴을 받아보세요.",
		AnalyzeMySkin:  "내 피부 분석하기",
		TakePhoto:      "얼굴 사진 촬영",
		ReadyTitle:     "촬영 준비 완료",
		ReadySubtitle:  "밝은 곳에서 화장을 지우고 정면을 바라봐 주세요.",
		GoBack:         "돌아가기",
		CameraDenied:   "이 기능을 사용하려면 카메라 접근을 허용해주세요.",
		NotAnImage:     "이미지 파일만 업로드할 수 있습니다.",
		ImageTooLarge:  "이미지가 너무 큽니다. 10MB 이하의 사진을 보내주세요.",
		DownloadFailed: "사진을 불러오지 못했습니다. 다시 보내주세요.",

		AnalyzingTitle:    "피부를 분석하고 있습니다",
		AnalyzingSubtitle: "AI 피부과 전문의가 사진을 꼼꼼히 살펴보는 중입니다...",
		AnalysisInFlight:  "분석이 진행 중입니다. 잠시만 기다려주세요.",
		AnalysisFailed:    "AI 분석에 실패했습니다. 더 선명한 사진으로 다시 시도해주세요.",

		ReportTitle:          "피부 분석 리포트",
		AnalysisDate:         "분석일:",
		SkinType:             "피부 타입",
		ScoreLabel:           "점수",
		HealthWebTitle:       "피부 건강 밸런스",
		DetailedMetricsTitle: "세부 지표",
		AIInsightTitle:       "AI 전문가 소견",
		MorningRoutine:       "아침 루틴",
		EveningRoutine:       "저녁 루틴",
		BestMatches:          "나에게 맞는 추천 제품",
		NewAnalysis:          "새로 분석하기",
		DisclaimerTitle:      "의료 면책 조항",
		DisclaimerText:       "이 분석은 AI가 생성한 참고용 정보이며 전문적인 의학적 진단을 대체하지 않습니다. 피부 질환이 의심되면 피부과 전문의와 상담하세요.",
		Metrics: MetricLabels{
			Hydration:    "수분",
			Oiliness:     "유분",
			Troubles:     "트러블",
			Pigmentation: "색소침착",
			Pores:        "모공",
			Wrinkles:     "주름",
		},

		ResetDone:       "처음 화면으로 돌아왔습니다.",
		LanguageChanged: "언어가 한국어로 변경되었습니다.",
		SwitchLanguage:  "🌐 EN",
		Help:            "/start 로 시작한 뒤 얼굴 사진을 보내주세요.\n/reset 처음으로\n/lang 언어 변경",

		Instruction: "모든 텍스트 응답(전문가 코멘트, 추천 성분, 루틴 단계)은 반드시 한국어로 작성하세요.",
	},
	English: {
		Title:          "SkinLog AI",
		HeroTitle:      "Know your skin. Powered by AI",
		HeroSubtitle:   "One photo is all it takes to assess hydration, oil balance, troubles, pigmentation, pores and wrinkles, with a routine made for you.",
		AnalyzeMySkin:  "Analyze My Skin",
		TakePhoto:      "Take a Face Photo",
		ReadyTitle:     "Ready to capture",
		ReadySubtitle:  "Find good lighting, remove makeup and look straight at the camera.",
		GoBack:         "Go Back",
		CameraDenied:   "Please allow camera access to use this feature.",
		NotAnImage:     "Only image files can be uploaded.",
		ImageTooLarge:  "The image is too large. Please send a photo under 10MB.",
		DownloadFailed: "Could not load the photo. Please send it again.",

		AnalyzingTitle:    "Analyzing your skin",
		AnalyzingSubtitle: "Our AI dermatologist is taking a close look at your photo...",
		AnalysisInFlight:  "An analysis is already running. Please wait a moment.",
		AnalysisFailed:    "AI analysis failed. Please try again with a clearer photo.",

		ReportTitle:          "Skin Analysis Report",
		AnalysisDate:         "Analyzed on",
		SkinType:             "Skin Type",
		ScoreLabel:           "Score",
		HealthWebTitle:       "Skin Health Balance",
		DetailedMetricsTitle: "Detailed Metrics",
		AIInsightTitle:       "AI Expert Insight",
		MorningRoutine:       "Morning Routine",
		EveningRoutine:       "Evening Routine",
		BestMatches:          "Best Matches for You",
		NewAnalysis:          "New Analysis",
		DisclaimerTitle:      "Medical Disclaimer",
		DisclaimerText:       "This analysis is AI-generated for informational purposes only and is not a substitute for professional medical diagnosis. Consult a dermatologist for any skin condition.",
		Metrics: MetricLabels{
			Hydration:    "Hydration",
			Oiliness:     "Oiliness",
			Troubles:     "Troubles",
			Pigmentation: "Pigmentation",
			Pores:        "Pores",
			Wrinkles:     "Wrinkles",
		},

		ResetDone:       "Back to the start.",
		LanguageChanged: "Language switched to English.",
		SwitchLanguage:  "🌐 KO",
		Help:            "Use /start and then send a photo of your face.\n/reset start over\n/lang switch language",

		Instruction: "Write all text responses (expert commentary, recommended ingredients, routine steps) in English.",
	},
}

// For returns a copy of the string table for lang, falling back to Default.
func For(lang Language) Strings {
	if s, ok := tables[lang]; ok {
		return s
	}
	return tables[Default]
}

// Languages returns the supported languages in display order.
func Languages() []Language {
	return []Language{Korean, English}
}
