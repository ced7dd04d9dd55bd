package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"veritas-backend/internal/logger"
)

// Fixed reply strings for degraded vision outcomes. Downstream quality
// filtering keys off these markers, so they must stay stable.
const (
	VisionImageNotFound = "Image not found."
	VisionNoText        = "Could not extract information from the image."
	VisionBlocked       = "Content was blocked by safety filters."
)

// VisionClient answers questions about rendered page images using a Gemini
// multimodal model.
type VisionClient struct {
	client *genai.Client
	model  string
}

func NewVisionClient(ctx context.Context, apiKey, model string) (*VisionClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for vision")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &VisionClient{client: client, model: model}, nil
}

// AnswerImage asks a single question about one image.
func (v *VisionClient) AnswerImage(ctx context.Context, imagePath, question string) (string, error) {
	prompt := fmt.Sprintf(
		"Analyze this image from a document and answer the following question accurately:\n\n"+
			"Question: %s\n\n"+
			"Provide detailed, specific information about what you see.", question)
	return v.generate(ctx, imagePath, prompt)
}

// AnalyzeChart runs the comprehensive chart-analysis prompt: title, chart
// type, every category with its value, the axis scale, and key insights.
func (v *VisionClient) AnalyzeChart(ctx context.Context, imagePath, question string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("Analyze this chart or graph in complete detail. Please provide:\n\n")
	prompt.WriteString("1. Title/Topic: What is the title or main subject of this visualization?\n")
	prompt.WriteString("2. Type: What type of chart is this (bar chart, line graph, pie chart, etc.)?\n")
	prompt.WriteString("3. Categories and Values: List EVERY category/item shown with its EXACT numerical value. ")
	prompt.WriteString("Read the scale carefully and look at where each bar ends.\n")
	prompt.WriteString("4. Scale/Units: What units or scale is being used? What are the min and max values on the axis?\n")
	prompt.WriteString("5. Key Insights: What are the main patterns or takeaways?\n\n")
	prompt.WriteString("Be extremely precise with numbers - read them directly from the chart axes and bars.")
	if question != "" {
		prompt.WriteString(fmt.Sprintf("\n\nSpecific Question to Answer: %s", question))
	}
	return v.generate(ctx, imagePath, prompt.String())
}

func (v *VisionClient) generate(ctx context.Context, imagePath, prompt string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		logger.Warn("Page image not readable", "path", imagePath, "error", err)
		return VisionImageNotFound, nil
	}

	model := v.client.GenerativeModel(v.model)
	// Charts are benign content; block nothing so dense numeric labels don't
	// trip a spurious safety refusal.
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData(imageFormat(imagePath), data),
	)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "blocked") || strings.Contains(msg, "safety") {
			return VisionBlocked, nil
		}
		return "", fmt.Errorf("vision generation failed: %w", err)
	}

	answer := extractText(resp)
	if answer == "" {
		return VisionNoText, nil
	}
	return answer, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func imageFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return "png"
	}
}

func (v *VisionClient) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
