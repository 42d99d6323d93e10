package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyPrefix starts every chat completion key.
const KeyPrefix = "chat:"

// ChatKeyer derives cache keys from chat completion parameters: KeyPrefix
// followed by 32 hex characters of the SHA-256 of the parameters' JSON.
// Structs and maps with the same fields produce the same key.
type ChatKeyer struct{}

func NewChatKeyer() *ChatKeyer {
	return &ChatKeyer{}
}

// keyInput fixes the field order of the hashed document.
type keyInput struct {
	Model       string  `json:"model"`
	Messages    any     `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Key returns the cache key for a completion request. messages may be any
// JSON-encodable value.
func (k *ChatKeyer) Key(model string, messages any, temperature float64, maxTokens int) (string, error) {
	msgs, err := normalize(messages)
	if err != nil {
		return "", fmt.Errorf("cache: encode messages: %w", err)
	}

	doc, err := json.Marshal(keyInput{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("cache: encode key input: %w", err)
	}

	sum := sha256.Sum256(doc)
	return KeyPrefix + hex.EncodeToString(sum[:16]), nil
}

// normalize decodes v's JSON into generic values. encoding/json writes map
// keys sorted, so struct fields lose their declaration order.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
