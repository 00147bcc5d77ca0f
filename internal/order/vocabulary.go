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

package order

import "strings"

var (
	resetTokens = []string{"start over", "reset", "new order", "restart"}

	affirmativeTokens = []string{"yes", "yeah", "yep", "sure"}

	confirmationTokens = []string{"yes", "yeah", "yep", "sure", "confirm", "ok"}
)

// IsReset reports whether the whole input is a request to start over
func IsReset(input string) bool {
	return matchToken(input, resetTokens)
}

// IsAffirmative reports whether the whole input is a plain "yes"
func IsAffirmative(input string) bool {
	return matchToken(input, affirmativeTokens)
}

// IsConfirmation reports whether the whole input confirms an order summary
func IsConfirmation(input string) bool {
	return matchToken(input, confirmationTokens)
}

func matchToken(input string, tokens []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, token := range tokens {
		if normalized == token {
			return true
		}
	}
	return false
}
