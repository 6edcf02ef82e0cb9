package rag

import (
	"strings"

	"github.com/hyperjump/iasistente/internal/llm"
	"github.com/hyperjump/iasistente/internal/models"
)

// DefaultSystemTemplate is the tutor persona. {knowledge_domain} and {context} are replaced
// when a prompt is composed.
const DefaultSystemTemplate = `Eres un asistente virtual que se comporta como un profesor de {knowledge_domain} experto.
Tu nombre es "IAsistente de {knowledge_domain}". Eres amable, didáctico y te encanta {knowledge_domain}.
REGLA ESTRICTA: Solo puedes responder preguntas relacionadas con {knowledge_domain} basándote en el contexto proporcionado. Si la pregunta no está relacionada con estos temas,
responde: "Lo siento, mi especialidad es {knowledge_domain}. No puedo responder preguntas sobre otros temas."

Contexto:
{context}`

const contextSection = "\n\nContexto:\n{context}"

// Prompt renders the system and user messages for one question.
type Prompt struct {
	template string
}

// NewPrompt returns a prompt using template, or DefaultSystemTemplate when it is empty.
// A template without a {context} placeholder gets a context section appended.
func NewPrompt(template string) *Prompt {
	if strings.TrimSpace(template) == "" {
		template = DefaultSystemTemplate
	}
	if !strings.Contains(template, "{context}") {
		template += contextSection
	}
	return &Prompt{template: template}
}

// Compose returns the system message for domain with the chunk texts as context, followed
// by the question as the user message.
func (p *Prompt) Compose(domain, question string, chunks []models.Chunk) []llm.Message {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	system := strings.NewReplacer(
		"{knowledge_domain}", domain,
		"{context}", strings.Join(texts, "\n\n"),
	).Replace(p.template)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: question},
	}
}
