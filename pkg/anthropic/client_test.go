package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
)

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "", Content: "defaulted"},
	})

	assert.Len(t, msgs, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[2].Role)
}

func TestFromSDKMessage_ConcatenatesTextBlocks(t *testing.T) {
	msg := &sdk.Message{
		ID:    "msg_1",
		Model: "claude-sonnet-4-5-20250929",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "first "},
			{Type: "tool_use"},
			{Type: "text", Text: "second"},
		},
		Usage: sdk.Usage{InputTokens: 42, OutputTokens: 7},
	}

	out := fromSDKMessage(msg)
	assert.Equal(t, "first second", out.Content)
	assert.Equal(t, int64(42), out.Usage.InputTokens)
	assert.Equal(t, int64(7), out.Usage.OutputTokens)
}
