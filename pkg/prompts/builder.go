package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/shouni/gemini-brand-kit/pkg/domain"
)

// テンプレートのモード名
const (
	ModeGenerate  = "generate"
	ModeTransform = "transform"
	ModeEdit      = "edit"
)

const roleSeparator = ", "

//go:embed templates/*.tmpl
var templateFS embed.FS

var templateFiles = map[string]string{
	ModeGenerate:  "templates/generate.tmpl",
	ModeTransform: "templates/transform.tmpl",
	ModeEdit:      "templates/edit.tmpl",
}

// TemplateData はテンプレートに渡す値です。
type TemplateData struct {
	Name       string
	Roles      []string
	RoleList   string
	StyleHint  string
	Refinement string
}

// PromptBuilder はブランディング画像用の指示文を組み立てる契約です。
type PromptBuilder interface {
	BuildGenerate(req domain.GenerationRequest) (string, error)
	BuildEdit(refinement string) (string, error)
}

// BrandPromptBuilder は埋め込みテンプレートから指示文を生成します。
type BrandPromptBuilder struct {
	templates map[string]*template.Template
}

// NewBrandPromptBuilder は埋め込みテンプレートを解析して BrandPromptBuilder を初期化するのだ。
func NewBrandPromptBuilder() (*BrandPromptBuilder, error) {
	parsed := make(map[string]*template.Template, len(templateFiles))
	for mode, file := range templateFiles {
		content, err := templateFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("プロンプトテンプレート '%s' の読み込みに失敗しました: %w", mode, err)
		}
		if len(strings.TrimSpace(string(content))) == 0 {
			return nil, fmt.Errorf("プロンプトテンプレート '%s' の内容が空です", mode)
		}

		// テンプレート自体の前後の改行だけを落とし、差し込む値には手を加えない
		tmpl, err := template.New(mode).Parse(strings.TrimSpace(string(content)))
		if err != nil {
			return nil, fmt.Errorf("プロンプト '%s' の解析に失敗: %w", mode, err)
		}
		parsed[mode] = tmpl
	}

	return &BrandPromptBuilder{templates: parsed}, nil
}

// BuildGenerate は生成要求から指示文を作ります。
// 参照画像がある場合は、顔の同一性を保った変換を求める文面に切り替えます。
func (b *BrandPromptBuilder) BuildGenerate(req domain.GenerationRequest) (string, error) {
	mode := ModeGenerate
	if !req.Reference.IsEmpty() {
		mode = ModeTransform
	}

	return b.build(mode, TemplateData{
		Name:      req.Name,
		Roles:     req.Roles,
		RoleList:  strings.Join(req.Roles, roleSeparator),
		StyleHint: req.StyleHint,
	})
}

// BuildEdit は修正指示をそのまま1つの指示文にします。
func (b *BrandPromptBuilder) BuildEdit(refinement string) (string, error) {
	return b.build(ModeEdit, TemplateData{Refinement: refinement})
}

func (b *BrandPromptBuilder) build(mode string, data TemplateData) (string, error) {
	tmpl, ok := b.templates[mode]
	if !ok {
		return "", fmt.Errorf("不明なモードです: '%s'", mode)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレートの実行に失敗しました: %w", err)
	}

	return sb.String(), nil
}
