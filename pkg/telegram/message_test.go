package telegram

import (
	"context"
	"testing"

	"golang-quant/config"
	"golang-quant/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBuilder(t *testing.T) {
	msg := NewMessage("Optimization completed").
		KV("strategy", "sma_crossover").
		Line("best %s = %.4f", "sharpe_ratio", 1.23456).
		String()

	assert.Equal(t, "Optimization completed\n- strategy: sma_crossover\nbest sharpe_ratio = 1.2346", msg)
}

func TestNewNotifier_NoTokenIsNop(t *testing.T) {
	n, err := NewNotifier(config.TelegramConfig{}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
	n.Alert("ignored")
}

func TestNewNotifier_InvalidChatID(t *testing.T) {
	_, err := NewNotifier(config.TelegramConfig{BotToken: "123:abc", ChatID: "not-a-number"}, logger.NewNop())
	assert.Error(t, err)
}
