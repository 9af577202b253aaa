package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/tflic/internal/common"
)

var (
	// ErrNoInput is returned when the input ends before a non-blank answer.
	ErrNoInput = errors.New("no input")
	// ErrPasswordMismatch is returned when the confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrEmptyPassword is returned for a blank password.
	ErrEmptyPassword = errors.New("password must not be empty")
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// PromptLine writes label to w and reads one trimmed line from r.
// Blank answers are asked again; running out of input yields ErrNoInput.
//
//	Enter login
//	> _
func PromptLine(r *bufio.Reader, label string, w io.Writer) (string, error) {
	for {
		if _, err := fmt.Fprint(w, label+"\n> "); err != nil {
			return "", err
		}
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if v := strings.TrimSpace(line); v != "" {
			return v, nil
		}
		if err != nil {
			return "", ErrNoInput
		}
	}
}

// PromptPassword reads a password from the terminal without echo.
// The caller wipes the returned slice.
func PromptPassword(label string, w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, label+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(pw)) == 0 {
		common.WipeByteArray(pw)
		return nil, ErrEmptyPassword
	}
	return pw, nil
}

// PromptNewPassword asks for a password twice and returns it when both
// entries match.
func PromptNewPassword(w io.Writer) ([]byte, error) {
	pw, err := PromptPassword("Choose password", w)
	if err != nil {
		return nil, err
	}
	confirm, err := PromptPassword("Repeat password", w)
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(confirm)
	if !bytes.Equal(pw, confirm) {
		common.WipeByteArray(pw)
		return nil, ErrPasswordMismatch
	}
	return pw, nil
}
