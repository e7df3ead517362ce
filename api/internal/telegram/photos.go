package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/image/webp"

	"jee-solver/api/internal/render"
	"jee-solver/api/internal/solver"
	"jee-solver/api/internal/util"
)

func (r *Router) acceptPhoto(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1]
	imgBytes, err := r.downloadFile(ph.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	key := batchKey(cid, msg.MediaGroupID)
	bi, _ := r.batches.LoadOrStore(key, &photoBatch{
		ChatID: cid, Key: key, MediaGroupID: msg.MediaGroupID, images: make([][]byte, 0, 4),
	})
	b := bi.(*photoBatch)

	b.mu.Lock()
	b.images = append(b.images, imgBytes)
	if c := strings.TrimSpace(msg.Caption); c != "" && b.caption == "" {
		b.caption = c
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(r.debounce, func() { r.processBatch(key) })
	first := len(b.images) == 1
	b.mu.Unlock()

	if first {
		r.send(cid, "📷 Got it, solving…")
	}
}

func (r *Router) processBatch(key string) {
	bi, ok := r.batches.LoadAndDelete(key)
	if !ok {
		return
	}
	b := bi.(*photoBatch)

	b.mu.Lock()
	images := append([][]byte(nil), b.images...)
	chatID, caption := b.ChatID, b.caption
	b.mu.Unlock()

	if len(images) == 0 {
		return
	}
	merged, err := combineAsOne(images)
	if err != nil {
		r.SendError(chatID, fmt.Errorf("combine photos: %w", err))
		return
	}
	r.Log.Debug("photo batch", "chat_id", chatID, "images", len(images), "bytes", len(merged))
	r.solve(context.Background(), chatID, solver.SolveInput{
		QuestionText: caption,
		Image:        merged,
		MIME:         "image/jpeg",
	})
}

// acceptDocument handles images and PDFs sent as files.
func (r *Router) acceptDocument(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	doc := msg.Document
	data, err := r.downloadFile(doc.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	im, err := r.Acq.FromUpload(doc.FileName, bytes.NewReader(data))
	if err != nil {
		r.send(cid, "⚠️ "+err.Error())
		return
	}
	in := solver.SolveInput{QuestionText: strings.TrimSpace(msg.Caption)}
	if im.IsPDF() {
		in.QuestionText = strings.TrimSpace(in.QuestionText + "\n\n" + im.Text)
	} else {
		in.Image, in.MIME = im.Data, im.MIME
	}
	r.send(cid, "📄 Got it, solving…")
	r.solve(ctx, cid, in)
}

func (r *Router) solve(ctx context.Context, chatID int64, in solver.SolveInput) {
	g := r.EngManager.Get(chatID)
	in.ConversationID = conversationKey(chatID)
	in.Engine, in.Model = g.Name(), g.GetModel()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	res, err := r.Solver.Solve(ctx, in)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	if res.GatewayErr != nil {
		r.Log.Warn("solve gateway error", "chat_id", chatID, "engine", g.Name(), "err", res.GatewayErr)
	}

	parts := render.Messages(res.Document, messageLimit)
	for i, p := range parts {
		msg := tgbotapi.NewMessage(chatID, p)
		if i == len(parts)-1 && !res.Document.Empty() {
			msg.ReplyMarkup = solvedKeyboard()
		}
		r.sendMessage(msg)
	}
}

func combineAsOne(images [][]byte) ([]byte, error) {
	decoded := make([]image.Image, 0, len(images))
	widths := make([]int, 0, len(images))
	heights := make([]int, 0, len(images))

	for _, b := range images {
		img, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			if try, err2 := tryDecodeStrict(b); err2 == nil {
				img = try
			} else {
				return nil, err
			}
		}
		decoded = append(decoded, img)
		bounds := img.Bounds()
		widths = append(widths, bounds.Dx())
		heights = append(heights, bounds.Dy())
	}

	maxW := 0
	sumH := 0
	for i := range decoded {
		if widths[i] > maxW {
			maxW = widths[i]
		}
		sumH += heights[i]
	}
	if maxW == 0 || sumH == 0 {
		return nil, fmt.Errorf("empty images")
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxW, sumH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	// stack vertically, centred
	y := 0
	for i, img := range decoded {
		w := widths[i]
		h := heights[i]
		x := (maxW - w) / 2
		rect := image.Rect(x, y, x+w, y+h)
		draw.Draw(dst, rect, img, img.Bounds().Min, draw.Over)
		y += h
	}

	final := image.Image(dst)
	if w, h, ok := fitPixels(maxW, sumH, maxPixels); ok {
		final = scaleDownNN(dst, w, h)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, final, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// fitPixels returns the size that keeps the aspect ratio within limit
// pixels; ok is false when w*h already fits.
func fitPixels(w, h, limit int) (int, int, bool) {
	total := w * h
	if total <= limit {
		return w, h, false
	}
	scale := math.Sqrt(float64(limit) / float64(total))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)
	return newW, newH, true
}

// tryDecodeStrict picks the decoder from magic bytes rather than the registered formats.
func tryDecodeStrict(b []byte) (image.Image, error) {
	r := bytes.NewReader(b)
	switch util.SniffMimeHTTP(b) {
	case "image/jpeg":
		return jpeg.Decode(r)
	case "image/png":
		return png.Decode(r)
	case "image/webp":
		return webp.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

func scaleDownNN(src image.Image, newW, newH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW := sb.Dx()
	srcH := sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

func (r *Router) downloadFile(fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return download(url)
}

func download(url string) ([]byte, error) {
	resp, err := httpClient().Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
