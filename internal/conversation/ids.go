// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conversation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxInputLength = 10000

var (
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	controlChars     = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// NewSessionID generates a unique session identifier
func NewSessionID() string {
	return uuid.NewString()
}

// ValidateSessionID checks a caller-supplied session identifier
func ValidateSessionID(sessionID string) bool {
	return sessionIDPattern.MatchString(sessionID)
}

// SanitizeUserInput strips control characters and caps the input length
func SanitizeUserInput(input string) string {
	input = controlChars.ReplaceAllString(input, "")

	if utf8.RuneCountInString(input) > maxInputLength {
		runes := []rune(input)
		input = string(runes[:maxInputLength])
	}

	return strings.TrimSpace(input)
}
