package prompt

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"screen-answer-llm/src/llm"
)

// FormatInstruction is the answer format every template demands.
const FormatInstruction = "Output strictly in the format: '[Letter]. [Answer]'."

const (
	TextTemplate = "Extract only the correct answer choice from the given multiple-choice question. " +
		FormatInstruction + " Do not include explanations or extra text. " +
		"If unclear, return 'Uncertain'."

	ImageTemplate = "Extract only the correct answer choice from the given multiple-choice question in the image. " +
		FormatInstruction + " Do not include explanations. " +
		"If unclear, return 'Uncertain'."

	CombinedTemplate = "Extract only the correct answer choice from the given multiple-choice question provided as both text and image. " +
		FormatInstruction + " Do not include extra text. " +
		"If unclear, return 'Uncertain'."
)

// Text builds the text-only prompt: the template followed by the question on its own line.
func Text(question string) []llm.Part {
	return []llm.Part{llm.TextPart(TextTemplate + "\n" + question)}
}

func Image(img llm.Part) []llm.Part {
	return []llm.Part{llm.TextPart(ImageTemplate), img}
}

func Combined(question string, img llm.Part) []llm.Part {
	return []llm.Part{llm.TextPart(CombinedTemplate), llm.TextPart(question), img}
}

// LoadImage reads an image file and returns it as a prompt part. Files that are missing,
// unreadable or not a decodable PNG/JPEG are rejected.
func LoadImage(path string) (llm.Part, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Part{}, err
	}
	return DecodeImage(data)
}

// DecodeImage checks that data is a PNG or JPEG and wraps it as a prompt part.
func DecodeImage(data []byte) (llm.Part, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return llm.Part{}, fmt.Errorf("not a readable image: %w", err)
	}
	return llm.ImagePart(data, "image/"+format), nil
}
