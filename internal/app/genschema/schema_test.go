package genschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/twogether/internal/domain"
)

func TestDecodeIdeas(t *testing.T) {
	v := MustNew()

	ideas, err := v.DecodeIdeas("```json\n" + `{"ideas":[
		{"id":"idea-1","title":"Sunset kayak","cost":45.5,"vibe":"Outdoors","tags":["water"],"extra":"ok"},
		{"id":"idea-2","title":"Ramen crawl","cost":30,"vibe":"foodie"}
	]}` + "\n```")
	require.NoError(t, err)
	require.Len(t, ideas, 2)

	assert.Equal(t, domain.CandidateID("idea-1"), ideas[0].ID)
	assert.Equal(t, "outdoors", ideas[0].Vibe)
	assert.Equal(t, "45.5", ideas[0].Cost.String())
	assert.False(t, ideas[0].Fallback)
}

func TestDecodeIdeas_RejectsBadShapes(t *testing.T) {
	v := MustNew()

	bad := map[string]string{
		"not json":       `here are some ideas`,
		"empty list":     `{"ideas":[]}`,
		"missing cost":   `{"ideas":[{"id":"a","title":"t","vibe":"v"}]}`,
		"negative cost":  `{"ideas":[{"id":"a","title":"t","cost":-1,"vibe":"v"}]}`,
		"bad id":         `{"ideas":[{"id":"has space","title":"t","cost":1,"vibe":"v"}]}`,
		"empty vibe":     `{"ideas":[{"id":"a","title":"t","cost":1,"vibe":""}]}`,
		"duplicate ids":  `{"ideas":[{"id":"a","title":"t","cost":1,"vibe":"v"},{"id":"a","title":"u","cost":1,"vibe":"v"}]}`,
		"string cost":    `{"ideas":[{"id":"a","title":"t","cost":"cheap","vibe":"v"}]}`,
		"top level list": `[{"id":"a","title":"t","cost":1,"vibe":"v"}]`,
	}

	for name, text := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := v.DecodeIdeas(text)
			assert.ErrorIs(t, err, domain.ErrUpstream)
		})
	}
}

func TestDecodeQuiz(t *testing.T) {
	v := MustNew()

	quiz, err := v.DecodeQuiz(`{"questions":[
		{"subject":"A","prompt":"Favorite food?","options":["ramen","tacos"],"correct_option":"ramen"}
	],"fun_facts":["You both like noodles"]}`)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, domain.PartyA, quiz.Questions[0].Subject)
	assert.Equal(t, []string{"You both like noodles"}, quiz.FunFacts)

	_, err = v.DecodeQuiz(`{"questions":[
		{"subject":"A","prompt":"Favorite food?","options":["ramen","tacos"],"correct_option":"pizza"}
	],"fun_facts":[]}`)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	_, err = v.DecodeQuiz(`{"questions":[
		{"subject":"C","prompt":"?","options":["a","b"],"correct_option":"a"}
	],"fun_facts":[]}`)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	_, err = v.DecodeQuiz(`{"questions":[
		{"subject":"A","prompt":"?","options":["a"],"correct_option":"a"}
	],"fun_facts":[]}`)
	assert.ErrorIs(t, err, domain.ErrUpstream, "needs at least two options")
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON("  {\"a\":1} "))
}
