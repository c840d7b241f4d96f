package prompts

import (
	"strings"
	"testing"

	"github.com/shouni/gemini-brand-kit/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrandPromptBuilder_BuildGenerate(t *testing.T) {
	b, err := NewBrandPromptBuilder()
	require.NoError(t, err)

	t.Run("名前と役職を順番通りに含めるのだ", func(t *testing.T) {
		prompt, err := b.BuildGenerate(domain.GenerationRequest{
			Name:  "Julian Gray",
			Roles: []string{"Founder", "CTO"},
		})
		require.NoError(t, err)

		assert.Contains(t, prompt, `"Julian Gray"`)
		assert.Contains(t, prompt, `"Founder, CTO"`)
		assert.Contains(t, prompt, "corner")
		assert.Contains(t, prompt, "lighting")
		assert.NotContains(t, prompt, "Transform this photo")
		assert.NotContains(t, prompt, "Additional style instruction")
	})

	t.Run("スタイル指定はそのまま追記されるのだ", func(t *testing.T) {
		prompt, err := b.BuildGenerate(domain.GenerationRequest{
			Name:      "Julian Gray",
			Roles:     []string{"Founder"},
			StyleHint: "black and white film look",
		})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(prompt, "Additional style instruction: black and white film look"))
	})

	t.Run("参照画像があれば変換用の文面になるのだ", func(t *testing.T) {
		prompt, err := b.BuildGenerate(domain.GenerationRequest{
			Name:      "Julian Gray",
			Roles:     []string{"CTO", "Founder"},
			Reference: &domain.EncodedImage{Data: []byte{1, 2, 3}, MimeType: "image/png"},
			StyleHint: "warm tones",
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(prompt, "Transform this photo"))
		assert.Contains(t, prompt, "facial identity")
		assert.Contains(t, prompt, `"CTO, Founder"`)
		assert.True(t, strings.HasSuffix(prompt, "High resolution. warm tones"))
	})
}

func TestBrandPromptBuilder_BuildEdit(t *testing.T) {
	b, err := NewBrandPromptBuilder()
	require.NoError(t, err)

	prompt, err := b.BuildEdit("Add classic glasses")
	require.NoError(t, err)
	assert.Equal(t, "Add classic glasses", prompt)

	t.Run("前後の空白も含めてそのまま送るのだ", func(t *testing.T) {
		prompt, err := b.BuildEdit("  Make the background navy\n")
		require.NoError(t, err)
		assert.Equal(t, "  Make the background navy\n", prompt)
	})
}

func TestBrandPromptBuilder_StyleHintIsVerbatim(t *testing.T) {
	b, err := NewBrandPromptBuilder()
	require.NoError(t, err)

	prompt, err := b.BuildGenerate(domain.GenerationRequest{
		Name:      "Julian Gray",
		Roles:     []string{"Founder"},
		StyleHint: " soft window light ",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(prompt, "Additional style instruction:  soft window light "))
}

func TestBrandPromptBuilder_UnknownMode(t *testing.T) {
	b, err := NewBrandPromptBuilder()
	require.NoError(t, err)

	_, err = b.build("unknown", TemplateData{})
	assert.Error(t, err)
}
