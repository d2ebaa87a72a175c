package provider

// generateContent (Gemini 系) のリクエスト

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

// predictions (Doubao 系) のリクエスト

type predictionRequest struct {
	Input predictionInput `json:"input"`
}

type predictionInput struct {
	Model                            string             `json:"model"`
	Prompt                           string             `json:"prompt"`
	Size                             string             `json:"size"`
	SequentialImageGeneration        string             `json:"sequential_image_generation"`
	SequentialImageGenerationOptions *sequentialOptions `json:"sequential_image_generation_options,omitempty"`
	// Image は img2img では data URI 文字列、multi では data URI の配列です。
	Image          any    `json:"image,omitempty"`
	ResponseFormat string `json:"response_format"`
	Watermark      bool   `json:"watermark"`
}

type sequentialOptions struct {
	MaxImages int `json:"max_images"`
}
