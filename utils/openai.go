package utils

import (
	openai "github.com/sashabaranov/go-openai"
)

// NewOpenAIClient baseURL 为空时使用官方地址
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
