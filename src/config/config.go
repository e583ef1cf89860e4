package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// ScanCodeKey returns the AES key used to seal ticket scan codes.
func ScanCodeKey() ([]byte, error) {
	keyEnv := os.Getenv("API_QRC_SECRET")
	key, err := hex.DecodeString(keyEnv)
	if err != nil {
		return nil, fmt.Errorf("could not read scan code key: %s", err.Error())
	}
	return key, nil
}

func DefaultCurrency() string {
	currency := os.Getenv("DEFAULT_CURRENCY")
	if currency == "" {
		return "omr"
	}
	return strings.ToLower(currency)
}

var currencyExponents = map[string]int32{
	"bhd": 3,
	"jod": 3,
	"jpy": 0,
	"krw": 0,
	"kwd": 3,
	"omr": 3,
	"tnd": 3,
}

// CurrencyExponent returns the number of decimal places of the minor unit
// for an ISO 4217 currency code. Unlisted currencies use 2.
func CurrencyExponent(code string) int32 {
	if exp, ok := currencyExponents[strings.ToLower(code)]; ok {
		return exp
	}
	return 2
}
