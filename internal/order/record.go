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

// Package order holds the purchase order record accumulated across a
// conversation, the extraction heuristics that fill it, the control vocabulary
// recognized in user turns, and the canonical final-output format.
package order

import "strings"

// Type is the classification label assigned to an order
type Type string

const (
	// Generic marks small or personal orders
	Generic Type = "generic"
	// Bulk marks large, wholesale or event orders
	Bulk Type = "bulk"
)

// NoPreference is stored when the user declines to name a brand or supplier
const NoPreference = "None"

// ParseType normalizes a label and reports whether it is one of the two known types
func ParseType(s string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Generic:
		return Generic, true
	case Bulk:
		return Bulk, true
	default:
		return "", false
	}
}

// Record is the order accumulated across handlers during one conversation
type Record struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	BrandPreference string `json:"brand_preference"`
	Type            Type   `json:"order_type,omitempty"`
}

// IsEmpty reports whether nothing has been collected yet
func (r Record) IsEmpty() bool {
	return r == Record{}
}

// Canonical projects the record onto the five-field final output
func (r Record) Canonical() Canonical {
	return Canonical{
		Title:           r.Title,
		Description:     r.Description,
		ProductName:     r.ProductName,
		Quantity:        r.Quantity,
		BrandPreference: r.BrandPreference,
	}
}
