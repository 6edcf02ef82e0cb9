// Package e2e provides end-to-end tests: documents are ingested into per-domain indexes and
// questions are asked over HTTP.
package e2e

import (
	"fmt"
	"strings"
)

// E2EDocument is one source file of the corpus. Its domain is its file name without extension.
type E2EDocument struct {
	Domain    string
	Ext       string
	Signature string
	Content   string
}

// FileName returns the name the document is written under.
func (d E2EDocument) FileName() string {
	return d.Domain + d.Ext
}

// ChatTestCase asks Question in Domain; the retrieved context must contain ExpectedSnippet.
type ChatTestCase struct {
	Domain          string
	Question        string
	ExpectedSnippet string
	Description     string
}

// Corpus holds the documents and chat test cases for E2E tests.
type Corpus struct {
	Documents []E2EDocument
	TestCases []ChatTestCase
}

// BuildCorpus returns one document per subject, spread over every supported file type, and one
// chat test case per document. Each document carries a signature phrase found in no other.
// The signature also closes the document in a short paragraph of its own, so it stays on one
// line in the PDF fixtures. PDF text stays ASCII because the test PDFs use core fonts.
func BuildCorpus() *Corpus {
	subjects := []struct {
		domain    string
		signature string
		content   string
	}{
		{"algebra_basica", "una variable representa un valor desconocido",
			"En algebra, una variable representa un valor desconocido. Las ecuaciones relacionan expresiones con el signo igual."},
		{"geometria", "la suma de los angulos interiores de un triangulo es 180 grados",
			"Un triangulo tiene tres lados. En el plano, la suma de los angulos interiores de un triangulo es 180 grados."},
		{"historia_mexico", "la independencia de Mexico comenzo en 1810",
			"Miguel Hidalgo convoco al pueblo en Dolores. Se ensena que la independencia de Mexico comenzo en 1810."},
		{"quimica", "el agua esta formada por dos atomos de hidrogeno y uno de oxigeno",
			"Una molecula es un grupo de atomos enlazados. Por ejemplo, el agua esta formada por dos atomos de hidrogeno y uno de oxigeno."},
		{"biologia celular", "la mitocondria produce la energia de la celula",
			"La celula es la unidad basica de la vida. Dentro de ella, la mitocondria produce la energia de la celula."},
		{"fisica-clasica", "la fuerza es igual a la masa por la aceleracion",
			"Newton formulo tres leyes del movimiento. La segunda dice que la fuerza es igual a la masa por la aceleracion."},
		{"literatura.es", "Cervantes escribio Don Quijote de la Mancha",
			"El Siglo de Oro dio grandes obras en espanol. Cervantes escribio Don Quijote de la Mancha a comienzos del siglo XVII."},
		{"programacion", "una funcion recibe argumentos y devuelve un resultado",
			"Un programa es una secuencia de instrucciones. En muchos lenguajes, una funcion recibe argumentos y devuelve un resultado."},
	}
	c := &Corpus{}
	for i, s := range subjects {
		d := E2EDocument{
			Domain:    s.domain,
			Ext:       SupportedFileExtensions[i%len(SupportedFileExtensions)],
			Signature: s.signature,
		}
		d.Content = fmt.Sprintf("%s\n\nEn resumen, %s.", s.content, s.signature)
		c.Documents = append(c.Documents, d)
		c.TestCases = append(c.TestCases, ChatTestCase{
			Domain:          d.Domain,
			Question:        fmt.Sprintf("Explica por que %s.", s.signature),
			ExpectedSnippet: s.signature,
			Description:     fmt.Sprintf("%s (%s)", d.Domain, d.Ext),
		})
	}
	return c
}

// Signatures returns the signature of every document outside domain.
func (c *Corpus) Signatures(except string) []string {
	var out []string
	for _, d := range c.Documents {
		if d.Domain != except {
			out = append(out, d.Signature)
		}
	}
	return out
}

func containsPhrase(d E2EDocument, phrase string) bool {
	return strings.Contains(d.Content, phrase)
}
