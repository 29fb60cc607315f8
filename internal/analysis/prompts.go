package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultImagePrompt asks the teacher persona to solve the pictured problem.
	DefaultImagePrompt = "ครูเพ็ญศรวยช่วยแก้ปัญหานี้ให้กับนักเรียนด้วยจ้า"
	// DefaultTextPrompt is the system instruction for AnalyzeText.
	DefaultTextPrompt = DefaultImagePrompt
	// DefaultContext is used when SolveProblem gets no context.
	DefaultContext = "general"
	// DefaultSubject is used when ProvideEducationalHelp gets no subject.
	DefaultSubject = "general"

	// ImageApology is sent when an image workflow fails.
	ImageApology = "Sorry, I encountered an error while analyzing your image. Please try again."
	// TextApology is sent when a text workflow fails.
	TextApology = "Sorry, I encountered an error while processing your message. Please try again."

	customLabel          = "🤖 Custom Analysis:\n\n"
	customFallback       = "No analysis available"
	imageContentFileName = "image.jpg"
	imageMaxTokens       = 1000
	customImageMaxTokens = 1500
	textMaxTokens        = 1000
	problemMaxTokens     = 1500
	educationalMaxTokens = 1500
	queryMaxTokens       = 1200
)

// UseCase selects a canned prompt pair for AnalyzeForUseCase.
type UseCase string

const (
	UseCaseAccessibility UseCase = "accessibility"
	UseCaseEducation     UseCase = "education"
	UseCaseBusiness      UseCase = "business"
	UseCaseSafety        UseCase = "safety"
	UseCaseTechnical     UseCase = "technical"
	UseCaseCreative      UseCase = "creative"
)

type promptPair struct {
	prompt string
	system string
}

var useCasePrompts = map[UseCase]promptPair{
	UseCaseAccessibility: {
		prompt: "Describe this image in detail to help visually impaired users understand what is shown. Be comprehensive and descriptive.",
		system: "You are an accessibility expert helping to make images accessible to visually impaired users.",
	},
	UseCaseEducation: {
		prompt: "Analyze this image for educational purposes. What concepts could be taught using this image? What questions could be asked about it?",
		system: "You are an educational expert who helps teachers use images effectively in the classroom.",
	},
	UseCaseBusiness: {
		prompt: "Analyze this image from a business perspective. What business insights can be derived? What opportunities or challenges does it represent?",
		system: "You are a business analyst who helps identify business opportunities and insights from visual content.",
	},
	UseCaseSafety: {
		prompt: "Analyze this image for safety concerns. Are there any potential hazards, unsafe practices, or safety violations visible?",
		system: "You are a safety expert who identifies potential hazards and safety concerns in images.",
	},
	UseCaseTechnical: {
		prompt: "Analyze this image from a technical perspective. Consider composition, lighting, colors, and any technical details.",
		system: "You are a professional photographer and image analyst.",
	},
	UseCaseCreative: {
		prompt: "Provide a creative and artistic interpretation of this image. What emotions does it evoke? What story might it tell?",
		system: "You are a creative writer and art critic with a poetic sensibility.",
	},
}

var defaultUseCasePrompt = promptPair{
	prompt: "Please describe what you see in this image.",
	system: "You are a helpful image analyst.",
}

func useCasePrompt(useCase UseCase) promptPair {
	if p, ok := useCasePrompts[useCase]; ok {
		return p
	}
	return defaultUseCasePrompt
}

// useCaseLabel renders "🤖 <UseCase> Analysis:" with the first letter upper-cased.
func useCaseLabel(useCase UseCase) string {
	name := string(useCase)
	if r, size := utf8.DecodeRuneInString(name); r != utf8.RuneError {
		name = string(unicode.ToUpper(r)) + name[size:]
	}
	return "🤖 " + name + " Analysis:\n\n"
}

// ResponseType selects the persona used by AnalyzeQuery.
type ResponseType string

const (
	ResponseHelpful        ResponseType = "helpful"
	ResponseEducational    ResponseType = "educational"
	ResponseProblemSolving ResponseType = "problem-solving"
	ResponseEncouraging    ResponseType = "encouraging"
)

type queryTemplate struct {
	system string
	// user is a format string taking the quoted query.
	user string
}

var queryTemplates = map[ResponseType]queryTemplate{
	ResponseHelpful: {
		system: "You are ครูเพ็ญศรวย, a helpful and knowledgeable teacher. Provide useful information and guidance.",
		user:   "นักเรียนถามว่า: \"%s\"\n\nช่วยตอบคำถามนี้ให้กับนักเรียนด้วยจ้า",
	},
	ResponseEducational: {
		system: "You are ครูเพ็ญศรวย, a knowledgeable and patient teacher. Provide educational insights and explanations.",
		user:   "นักเรียนถามว่า: \"%s\"\n\nช่วยอธิบายให้เข้าใจง่ายๆ จ้า",
	},
	ResponseProblemSolving: {
		system: "You are ครูเพ็ญศรวย, a problem-solving expert. Help students work through their challenges step by step.",
		user:   "นักเรียนมีปัญหานี้: \"%s\"\n\nช่วยแก้ปัญหานี้ให้กับนักเรียนด้วยจ้า",
	},
	ResponseEncouraging: {
		system: "You are ครูเพ็ญศรวย, a supportive and encouraging teacher. Provide motivation and positive guidance.",
		user:   "นักเรียนพูดว่า: \"%s\"\n\nให้กำลังใจและคำแนะนำที่เป็นประโยชน์จ้า",
	},
}

// queryPrompt returns the system and user turns for a query. Unknown
// response types use the helpful persona.
func queryPrompt(query string, responseType ResponseType) (system, user string) {
	tmpl, ok := queryTemplates[responseType]
	if !ok {
		tmpl = queryTemplates[ResponseHelpful]
	}
	return tmpl.system, fmt.Sprintf(tmpl.user, query)
}

func problemPrompt(problem, context string) (system, user string) {
	if strings.TrimSpace(context) == "" {
		context = DefaultContext
	}
	system = fmt.Sprintf("You are ครูเพ็ญศรวย, a helpful and knowledgeable teacher who specializes in %s problems.\n"+
		"You help students understand and solve their problems step by step.\n"+
		"Be encouraging, clear, and provide practical solutions.", context)
	user = fmt.Sprintf("นักเรียนมีปัญหานี้: \"%s\"\n\nช่วยแก้ปัญหานี้ให้กับนักเรียนด้วยจ้า", problem)
	return system, user
}

func educationalPrompt(question, subject, gradeLevel string) (system, user string) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	grade := ""
	if gradeLevel = strings.TrimSpace(gradeLevel); gradeLevel != "" {
		grade = " for " + gradeLevel + " level"
	}
	system = fmt.Sprintf("You are ครูเพ็ญศรวย, an expert %s teacher%s.\n"+
		"You help students understand concepts clearly and provide step-by-step explanations.\n"+
		"Use examples when helpful and encourage learning.", subject, grade)
	user = fmt.Sprintf("นักเรียนมีคำถามเกี่ยวกับ %s: \"%s\"\n\nช่วยอธิบายให้เข้าใจง่ายๆ จ้า", subject, question)
	return system, user
}
