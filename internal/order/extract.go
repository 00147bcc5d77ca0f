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

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultGenericQuantity is used when a generic description carries no number
	DefaultGenericQuantity = 1
	// DefaultBulkQuantity is used when a bulk description carries no number
	DefaultBulkQuantity = 100
)

var integerPattern = regexp.MustCompile(`\d+`)

// Extraction is the product name and quantity pulled out of a description
type Extraction struct {
	ProductName string
	Quantity    int
}

// Extract derives a product name and quantity from a free-text description.
//
// The quantity is the first integer literal in the text, or defaultQuantity when
// there is none. The product name is the second and third whitespace-separated
// tokens joined by a space; descriptions with fewer than three tokens are used
// verbatim. This is a positional heuristic: "a wooden desk" yields "wooden desk"
// but "I need chairs" yields "need chairs".
func Extract(description string, defaultQuantity int) Extraction {
	quantity, ok := FirstInteger(description)
	if !ok || quantity <= 0 {
		quantity = defaultQuantity
	}

	productName := description
	if words := strings.Fields(description); len(words) >= 3 {
		productName = strings.Join(words[1:3], " ")
	}

	return Extraction{
		ProductName: productName,
		Quantity:    quantity,
	}
}

// FirstInteger returns the first run of ASCII digits in s. Runs too long for an
// int saturate at math.MaxInt.
func FirstInteger(s string) (int, bool) {
	match := integerPattern.FindString(s)
	if match == "" {
		return 0, false
	}

	n, err := strconv.Atoi(match)
	if err != nil {
		return math.MaxInt, true
	}
	return n, true
}

// Apply merges an extraction into the record
func (r *Record) Apply(e Extraction) {
	r.ProductName = e.ProductName
	r.Quantity = e.Quantity
}
