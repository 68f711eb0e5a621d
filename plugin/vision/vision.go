// Package vision prepares camera and screen captures for the vision model and
// asks it about them.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/hrygo/aida/ai/core/llm"
)

// Prompts used for the built-in vision actions.
const (
	PromptDescribeWebcam = "Describe what you see in this image. Be concise."
	PromptDescribeScreen = "Describe what's on this screen. What applications and content do you see?"
	PromptReadText       = "Read the text in this image. Output ONLY the text content, do not describe the image."
)

const (
	// DefaultMaxSide bounds the longest edge sent to the model.
	DefaultMaxSide = 1280
	jpegQuality    = 85
)

// ErrEmptyImage is returned for a capture without data.
var ErrEmptyImage = errors.New("empty image")

// Prepare decodes an image, applies EXIF orientation, fits it within
// maxSide and returns it as a base64 JPEG. maxSide <= 0 uses DefaultMaxSide.
func Prepare(data []byte, maxSide int) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxSide || bounds.Dy() > maxSide {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Describer asks the vision model about images.
type Describer struct {
	llm     llm.Service
	maxSide int
}

func NewDescriber(service llm.Service) *Describer {
	return &Describer{llm: service, maxSide: DefaultMaxSide}
}

// Describe sends prompt with the prepared image and returns the model's answer.
func (d *Describer) Describe(ctx context.Context, prompt string, image []byte) (string, error) {
	encoded, err := Prepare(image, d.maxSide)
	if err != nil {
		return "", err
	}
	resp, _, err := d.llm.ChatVision(ctx, []llm.Message{{
		Role:    llm.RoleUser,
		Content: prompt,
		Images:  []string{encoded},
	}})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
