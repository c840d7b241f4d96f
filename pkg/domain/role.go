package domain

// MaxRoles は1枚の画像に載せられる役職の上限です。
// 4つ以上になると画像上のタイポグラフィが崩れるため3つまでに制限しています。
const MaxRoles = 3

// Role はブランディング画像に表示する役職です。
// ID は追加時に採番され、削除や並び替えをラベルに依存せず行うためだけに使います。
type Role struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PresetRoles は UI で選択肢として提示する役職のカタログなのだ。
var PresetRoles = []string{
	"Senior Web Developer",
	"Freelance Consultant",
	"Product Designer",
	"Operations Manager",
	"Machine Learning Engineer",
	"Brand Specialist",
	"Startup Founder",
	"Growth Marketer",
}
