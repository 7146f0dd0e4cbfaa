package task

import (
	"errors"
	"fmt"
)

var (
	ErrNoDocuments  = errors.New("no PDF documents provided")
	ErrTaskNotFound = errors.New("task not found")
)

func NewErrNotPDF(name string) error {
	return errors.New("file is not a PDF: " + name)
}

func NewErrEmptyDocument(name string) error {
	return errors.New("file is empty: " + name)
}

func NewErrTooLarge(name string, limit int64) error {
	return fmt.Errorf("file %s exceeds the %d MB upload limit", name, limit>>20)
}

func NewErrDPIOutOfRange(dpi int) error {
	return fmt.Errorf("rendering resolution %d out of range (%d-%d)", dpi, MinDPI, MaxDPI)
}
