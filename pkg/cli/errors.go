package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// StatusMessages maps gateway status codes to human-readable messages
var StatusMessages = map[int]string{
	http.StatusBadRequest:           "Invalid request",
	http.StatusUnauthorized:         "Authentication failed - invalid or missing token",
	http.StatusNotFound:             "Record not found",
	http.StatusMethodNotAllowed:     "Operation requires a record id",
	http.StatusUnsupportedMediaType: "Unsupported content type",
	http.StatusInternalServerError:  "Internal server error",
	http.StatusServiceUnavailable:   "Service unavailable - the gateway may be down or unreachable",
}

// StatusSuggestions provides helpful suggestions for specific status codes
var StatusSuggestions = map[int][]string{
	http.StatusUnauthorized: {
		"Check that your token is correct: " + CodeStyle.Render("--token <token>"),
		"Or set " + CodeStyle.Render("FACILITY_TOKEN"),
	},
	http.StatusNotFound: {
		"List existing records with " + CodeStyle.Render("facility <kind> list"),
	},
	http.StatusServiceUnavailable: {
		"Check that the gateway is running",
		"Verify the gateway address: " + CodeStyle.Render("--api <url>"),
	},
}

// FormatError converts an error to a human-readable message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg, ok := StatusMessages[apiErr.StatusCode]
		if !ok {
			msg = http.StatusText(apiErr.StatusCode)
		}
		if detail := apiErr.Error(); detail != "" && !strings.EqualFold(detail, msg) && detail != http.StatusText(apiErr.StatusCode) {
			msg = fmt.Sprintf("%s: %s", msg, detail)
		}
		for _, f := range apiErr.Fields {
			msg += fmt.Sprintf("\n    %s: %s", f.Field, f.Tag)
			if f.Param != "" {
				msg += "=" + f.Param
			}
		}
		return msg
	}

	return cleanErrorMessage(err.Error())
}

// GetErrorSuggestions returns helpful suggestions for an error
func GetErrorSuggestions(err error) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return StatusSuggestions[apiErr.StatusCode]
	}
	if err != nil && strings.Contains(err.Error(), "connection refused") {
		return StatusSuggestions[http.StatusServiceUnavailable]
	}
	return nil
}

// cleanErrorMessage cleans up common error message patterns
func cleanErrorMessage(msg string) string {
	msg = strings.TrimPrefix(msg, "error: ")
	msg = strings.TrimPrefix(msg, "Error: ")

	// For deeply nested errors, just show the most relevant part
	if parts := strings.Split(msg, ": "); len(parts) > 3 {
		msg = parts[0] + ": " + parts[len(parts)-1]
	}

	return msg
}

// PrintFormattedError prints an error with styling and optional suggestions
func PrintFormattedError(title string, err error) {
	fmt.Fprintln(os.Stderr)
	PrintErrorMsg(title)

	if err != nil {
		fmt.Fprintf(os.Stderr, "  %s\n", DimStyle.Render(FormatError(err)))

		if suggestions := GetErrorSuggestions(err); len(suggestions) > 0 {
			PrintSuggestions(os.Stderr, "Suggestions:", suggestions)
		}
	}
	fmt.Fprintln(os.Stderr)
}
