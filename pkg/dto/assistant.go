package dto

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}
