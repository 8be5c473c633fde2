package wa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.uber.org/zap"
)

// ErrPairTimeout is returned when no QR code was scanned in time.
var ErrPairTimeout = errors.New("pairing timed out")

// Pair links the device by QR code. Each code is rendered to out and
// published on the bus. Pair connects the client and returns once the phone
// confirms the link, the codes run out, or ctx is cancelled.
func (a *Adapter) Pair(ctx context.Context, out io.Writer) error {
	if a.IsLoggedIn() {
		return ErrAlreadyPaired
	}
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	// GetQRChannel must be called before Connect.
	if err := a.Connect(); err != nil {
		a.bus.Emit(bus.KindPairFailed, err.Error())
		return fmt.Errorf("connect for pairing: %w", err)
	}

	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			a.logger.Info("pairing code issued", zap.Duration("valid_for", item.Timeout))
			a.bus.Emit(bus.KindPairCode, item.Code)
			if out != nil {
				_, _ = fmt.Fprintf(out, "\nScan this QR code with WhatsApp (Linked devices):\n\n%s\n", renderQR(item.Code))
			}
		case whatsmeow.QRChannelSuccess.Event:
			a.logger.Info("device paired")
			a.bus.Emit(bus.KindPaired, nil)
			return nil
		case whatsmeow.QRChannelTimeout.Event:
			a.bus.Emit(bus.KindPairFailed, "timeout")
			return ErrPairTimeout
		case whatsmeow.QRChannelEventError:
			a.bus.Emit(bus.KindPairFailed, fmt.Sprint(item.Error))
			return fmt.Errorf("pairing: %w", item.Error)
		default:
			a.bus.Emit(bus.KindPairFailed, item.Event)
			return fmt.Errorf("pairing: %s", item.Event)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("pairing: QR channel closed")
}

// renderQR draws content with Unicode half blocks, two module rows per line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "(QR generation failed: " + err.Error() + ")"
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]
			sb.WriteRune(halfBlock(top, bottom))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// halfBlock maps a pair of modules to a glyph for a dark-on-light terminal:
// dark modules are drawn as blanks, light modules as filled blocks.
func halfBlock(top, bottom bool) rune {
	switch {
	case top && bottom:
		return ' '
	case top:
		return '▄'
	case bottom:
		return '▀'
	default:
		return '█'
	}
}
