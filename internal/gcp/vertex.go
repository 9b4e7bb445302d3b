package gcp

import (
	"context"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/rotisserie/eris"
)

// RouteExtractionSystemPrompt frames every route extraction request.
const RouteExtractionSystemPrompt = "You are a careful data entry clerk for a school transportation office. You read OCR text of scanned bus route sheets and return the routes as JSON that matches the response schema exactly. You never invent stops, students or phone numbers."

// routeSchema is the response schema: an array of routes.
var routeSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"busNumber":  {Type: genai.TypeString},
			"schoolName": {Type: genai.TypeString},
			"stops": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"time":     {Type: genai.TypeString},
						"location": {Type: genai.TypeString},
						"students": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"name":           {Type: genai.TypeString},
									"contactName":    {Type: genai.TypeString},
									"phoneNumber":    {Type: genai.TypeString},
									"otherEquipment": {Type: genai.TypeString},
								},
							},
						},
					},
					Required: []string{"time", "location", "students"},
				},
			},
		},
		Required: []string{"busNumber", "schoolName", "stops"},
	},
}

// VertexClient holds the pre-configured route extraction model.
type VertexClient struct {
	RouteModel *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexClient creates a client whose model returns schema-constrained
// JSON at temperature 0.
func NewVertexClient(ctx context.Context, projectID, region, model string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, eris.New("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, eris.Wrap(err, "genai.NewClient")
	}

	routeModel := baseClient.GenerativeModel(model)
	routeModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(RouteExtractionSystemPrompt)},
	}
	routeModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   routeSchema,
		Temperature:      genai.Ptr[float32](0.0),
	}
	// Route sheets carry student names and medical equipment notes.
	routeModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{RouteModel: routeModel, baseClient: baseClient}, nil
}

// Generate runs one extraction prompt and returns the concatenated text parts.
func (c *VertexClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.RouteModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", eris.Wrap(err, "vertex generate content")
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
