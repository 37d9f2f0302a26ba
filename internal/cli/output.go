package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Коды выхода
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // запись не прошла проверку, есть отказы
	ExitCommandError = 2 // неверные флаги, файл не найден
)

// ExitError - ошибка с кодом выхода
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode: не-ExitError считается ExitFailure
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Printer печатает результат как JSON или как текст
type Printer struct {
	Format string
	Writer io.Writer
}

// Print: text вызывается только в текстовом режиме
func (p *Printer) Print(data any, text func(w io.Writer)) error {
	if p.Format == "json" {
		enc := json.NewEncoder(p.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(p.Writer)
	return nil
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read "+path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return WrapExitError(ExitCommandError, "failed to parse "+path, err)
	}
	return nil
}
