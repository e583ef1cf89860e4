package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"

	"tixgate/src/types"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a decimal money string ("5.000" OMR) into integer
// minor currency units using the currency exponent. Fractions smaller
// than the minor unit are rejected; money never touches floats.
func ParsePrice(s string, exponent int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, types.NewValidationError("invalid price %q", s)
	}
	if d.IsNegative() {
		return 0, types.NewValidationError("price %q must not be negative", s)
	}
	minor := d.Shift(exponent)
	if !minor.IsInteger() {
		return 0, types.NewValidationError("price %q has more decimal places than the currency allows", s)
	}
	return minor.IntPart(), nil
}

// FormatPrice renders integer minor units back to a decimal money string.
func FormatPrice(minor int64, exponent int32) string {
	return decimal.New(minor, -exponent).StringFixed(exponent)
}

func EncryptMessage(key []byte, message string) (string, error) {
	plaintext := []byte(message)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, plaintext, nil)
	encodedString := hex.EncodeToString(cipherText)

	return encodedString, nil
}

func DecryptMessage(key []byte, message string) (*string, error) {
	cipherText, err := hex.DecodeString(message)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(cipherText) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	decryptedData, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return nil, err
	}
	decodedString := string(decryptedData)

	return &decodedString, nil
}
