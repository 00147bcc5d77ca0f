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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// FinalOutputMarker precedes the fenced JSON block in a confirmation reply
	FinalOutputMarker = "📋 **Final Output:**"

	jsonFenceOpen  = "```json"
	jsonFenceClose = "```"
)

// Canonical is the final output contract. Field order is part of the
// serialized form.
type Canonical struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	BrandPreference string `json:"brand_preference"`
}

// Render serializes the canonical record as two-space indented JSON
func (c Canonical) Render() (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return "", fmt.Errorf("failed to encode final output: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// ParseCanonical decodes a canonical JSON object. Unknown keys and
// non-integer quantities are rejected.
func ParseCanonical(data string) (Canonical, error) {
	decoder := json.NewDecoder(strings.NewReader(data))
	decoder.DisallowUnknownFields()

	var c Canonical
	if err := decoder.Decode(&c); err != nil {
		return Canonical{}, fmt.Errorf("failed to decode final output: %w", err)
	}
	return c, nil
}

// FormatFinalOutput renders the marker and fenced JSON block embedded in
// confirmation replies
func FormatFinalOutput(c Canonical) (string, error) {
	rendered, err := c.Render()
	if err != nil {
		return "", err
	}
	return FinalOutputMarker + "\n" + jsonFenceOpen + "\n" + rendered + "\n" + jsonFenceClose, nil
}

// FindCanonical locates the final output block in a reply and parses it.
// found is false when the reply carries no marker.
func FindCanonical(reply string) (c Canonical, found bool, err error) {
	markerIdx := strings.Index(reply, FinalOutputMarker)
	if markerIdx < 0 {
		return Canonical{}, false, nil
	}

	rest := reply[markerIdx+len(FinalOutputMarker):]
	openIdx := strings.Index(rest, jsonFenceOpen)
	if openIdx < 0 {
		return Canonical{}, true, fmt.Errorf("final output marker without json block")
	}

	body := rest[openIdx+len(jsonFenceOpen):]
	closeIdx := strings.Index(body, jsonFenceClose)
	if closeIdx < 0 {
		return Canonical{}, true, fmt.Errorf("unterminated json block")
	}

	c, err = ParseCanonical(strings.TrimSpace(body[:closeIdx]))
	return c, true, err
}
