package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

func (g *Generator) GenerateUserID() string {
	return g.generate("u")
}

func (g *Generator) GenerateConversationEntryID() string {
	return g.generate("ce")
}

func (g *Generator) GenerateKnowledgeBufferItemID() string {
	return g.generate("kb")
}

func (g *Generator) GenerateMemoryID() string {
	return g.generate("mem")
}

func (g *Generator) GenerateMemoryUpdateID() string {
	return g.generate("mu")
}
