package extract

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestCandidatesPrettyPrinted(t *testing.T) {
	g := NewGomegaWithT(t)
	data := []byte("{\n  \"timestamp\": \"2026-02-01\"}\n{\n  \"timestamp\": \"2026-02-02\"}")

	g.Expect(Candidates(data)).To(Equal([]int{0, 31}))
}

func TestCandidatesCompact(t *testing.T) {
	g := NewGomegaWithT(t)
	data := []byte(`{"timestamp": "2026-02-01"}{"timestamp": "2026-02-02"}`)

	g.Expect(Candidates(data)).To(Equal([]int{0, 27}))
}

func TestCandidatesMixedStylesAreSorted(t *testing.T) {
	g := NewGomegaWithT(t)
	data := []byte("{\"timestamp\":1}\n{\n  \"timestamp\":2}{\"timestamp\":3}")

	g.Expect(Candidates(data)).To(Equal([]int{0, 16, 34}))
}

func TestCandidatesNone(t *testing.T) {
	g := NewGomegaWithT(t)

	g.Expect(Candidates(nil)).To(BeEmpty())
	g.Expect(Candidates([]byte(`{"foo": "bar"}{"baz": "qux"}`))).To(BeEmpty())
	g.Expect(Candidates([]byte(`{ "timestamp": 1}`))).To(BeEmpty())
}

func TestCandidatesNestedFalsePositive(t *testing.T) {
	g := NewGomegaWithT(t)
	data := []byte(`{"timestamp":"t","hook_event":"A","input":{"timestamp":"x"}}`)

	offsets := Candidates(data)
	g.Expect(offsets).To(HaveLen(2))
	g.Expect(offsets[0]).To(Equal(0))
	// The nested object decodes but lacks the other required keys.
	g.Expect(Extract(data)).To(HaveLen(1))
}
