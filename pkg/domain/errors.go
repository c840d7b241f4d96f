package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationFailed は必須入力が欠けているため処理を開始しなかったことを示します。
	ErrValidationFailed = errors.New("validation failed")
	// ErrGenerationFailed はリモート呼び出しが失敗したか、使える画像が返らなかったことを示します。
	ErrGenerationFailed = errors.New("generation failed")
	// ErrNoImage は応答に画像パーツが含まれていなかった場合のエラーです。
	ErrNoImage = errors.New("画像データが見つかりませんでした")
)

// GenerationError は生成・編集の失敗原因を保持します。
// errors.Is(err, ErrGenerationFailed) で判定でき、Unwrap で元の原因を取り出せます。
type GenerationError struct {
	Op  string // "generate" または "edit"
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// NewGenerationError は原因をラップした GenerationError を返すのだ。
func NewGenerationError(op string, err error) error {
	return &GenerationError{Op: op, Err: err}
}
