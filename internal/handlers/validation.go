package handlers

import (
	"errors"
	"regexp"
	"time"

	"cashbook/internal/money"
)

var (
	errInvalidAmount   = errors.New("invalid amount")
	errInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	errInvalidEmail    = errors.New("invalid email")
	errInvalidUsername = errors.New("invalid username")
	errInvalidPassword = errors.New("password must be at least 8 characters")
)

var (
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
)

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func validateDate(raw string) error {
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return errInvalidDate
	}
	return nil
}

func validateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return errInvalidUsername
	}
	return nil
}

func validateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return errInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errInvalidPassword
	}
	return nil
}
