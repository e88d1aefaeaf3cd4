package main

import (
	"log/slog"

	"github.com/ssungk/netpipe/buffer"
	"github.com/ssungk/netpipe/pipeline"
)

// echoHandler writes every inbound message straight back out the way
// it arrived. It does not release the buffer itself: the write hands it
// to the transport, which releases it after copying its bytes out.
type echoHandler struct {
	logger *slog.Logger
}

func newEchoHandler(logger *slog.Logger) *echoHandler {
	return &echoHandler{logger: logger}
}

func (h *echoHandler) ChannelRead(ctx *pipeline.Context, msg any) error {
	buf, ok := msg.(*buffer.Buffer)
	if !ok {
		return nil
	}
	ctx.Write(buf, nil)
	return nil
}

func (h *echoHandler) ChannelReadComplete(ctx *pipeline.Context) error {
	ctx.Flush()
	return nil
}

func (h *echoHandler) ExceptionCaught(ctx *pipeline.Context, cause error) error {
	h.logger.Warn("echo handler observed exception", "error", cause)
	ctx.Close(nil)
	return nil
}
