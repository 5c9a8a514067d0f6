package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/cbegin/sonodoodle"
	"github.com/cbegin/sonodoodle/internal/palette"
	"github.com/cbegin/sonodoodle/internal/raster"
)

const (
	windowW      = 1000
	windowH      = 640
	canvasW      = 600
	canvasH      = 400
	uiSampleRate = 48000

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	minBrush = 1
	maxBrush = 40
)

var (
	bgColor         = color.RGBA{192, 192, 192, 255}
	panelColor      = color.RGBA{192, 192, 192, 255}
	borderColor     = color.RGBA{128, 128, 128, 255}
	highlightColor  = color.RGBA{0, 0, 128, 255}
	bevelLight      = color.RGBA{255, 255, 255, 255}
	bevelDarker     = color.RGBA{64, 64, 64, 255}
	sunkenBgColor   = color.RGBA{24, 24, 32, 255}
	sliderFillColor = color.RGBA{0, 0, 128, 255}
	canvasColor     = color.RGBA{255, 255, 255, 255}
)

const ringBufLen = 16384

// analyzer keeps the most recent mono samples for the scope.
type analyzer struct {
	mu       sync.Mutex
	ring     []float32
	writePos int
}

func newAnalyzer() *analyzer {
	return &analyzer{ring: make([]float32, ringBufLen)}
}

// Tap is called from the audio thread. Keep it minimal: just copy into ring.
func (a *analyzer) Tap(samples []float32) {
	a.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		a.ring[a.writePos] = (samples[i] + samples[i+1]) * 0.5
		a.writePos = (a.writePos + 1) % ringBufLen
	}
	a.mu.Unlock()
}

func (a *analyzer) Snapshot(n int) []float32 {
	n = min(n, ringBufLen)
	out := make([]float32, n)
	a.mu.Lock()
	start := (a.writePos - n + ringBufLen) % ringBufLen
	for i := 0; i < n; i++ {
		out[i] = a.ring[(start+i)%ringBufLen]
	}
	a.mu.Unlock()
	return out
}

type game struct {
	sonifier *sonodoodle.Sonifier
	palette  palette.Palette
	analyzer *analyzer
	canvas   *ebiten.Image
	pixels   []byte
	scopeImg *ebiten.Image

	brushIdx  int
	brushSize float64
	volume    float64

	drawing      bool
	lastX, lastY float32
	dragging     int // 0=none, 1=brush size, 2=volume

	playing bool
	endsAt  float64

	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
}

func newGame(pal palette.Palette) (*game, error) {
	a := newAnalyzer()
	s, err := sonodoodle.New(uiSampleRate,
		sonodoodle.WithPalette(pal),
		sonodoodle.WithSampleTap(a.Tap),
	)
	if err != nil {
		return nil, err
	}
	g := &game{
		sonifier:  s,
		palette:   pal,
		analyzer:  a,
		canvas:    ebiten.NewImage(canvasW, canvasH),
		pixels:    make([]byte, 4*canvasW*canvasH),
		brushSize: 5,
		volume:    1,
		status:    "Pick a color and draw",
		textCache: make(map[string]*ebiten.Image, 256),
	}
	g.canvas.Fill(canvasColor)
	return g, nil
}

func (g *game) Update() error {
	if g.playing && g.sonifier.CurrentTime() >= g.endsAt {
		g.playing = false
		if !g.statusErr {
			g.setStatus("Done")
		}
	}
	g.handleMouse()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := layoutRects()

	g.drawSunkenPanel(screen, l.canvas)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(l.canvas.Min.X+2), float64(l.canvas.Min.Y+2))
	screen.DrawImage(g.canvas, op)

	g.drawBrushes(screen, l.brushes)
	g.drawButton(screen, l.play, g.playButtonLabel())
	g.drawButton(screen, l.clear, "Clear")
	g.drawSlider(screen, l.size, fmt.Sprintf("Size %d", int(g.brushSize)), (g.brushSize-minBrush)/(maxBrush-minBrush))
	g.drawSlider(screen, l.volume, fmt.Sprintf("Vol %d%%", int(g.volume*100+0.5)), g.volume)
	g.drawDarkPanel(screen, l.scope)
	g.drawScope(screen, l.scope)
	g.drawSunkenPanel(screen, l.status)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(int, int) (int, int) {
	return windowW, windowH
}

func (g *game) Close() {
	if err := g.sonifier.Close(); err != nil {
		slog.Error("could not close playback", "error", err)
	}
}

type uiLayout struct {
	canvas, brushes, scope   image.Rectangle
	play, clear, size, volume image.Rectangle
	status                   image.Rectangle
}

func layoutRects() uiLayout {
	pad := 20
	rowH := 44
	canvasRect := image.Rect(pad, pad, pad+canvasW+4, pad+canvasH+4)
	rightX := canvasRect.Max.X + 12
	brushRect := image.Rect(rightX, pad, windowW-pad, pad+canvasH+4)
	controlsTop := canvasRect.Max.Y + 12
	statusTop := windowH - pad - 40
	return uiLayout{
		canvas:  canvasRect,
		brushes: brushRect,
		play:    image.Rect(pad, controlsTop, pad+120, controlsTop+rowH),
		clear:   image.Rect(pad+132, controlsTop, pad+252, controlsTop+rowH),
		size:    image.Rect(pad+264, controlsTop, pad+534, controlsTop+rowH),
		volume:  image.Rect(pad+546, controlsTop, pad+816, controlsTop+rowH),
		scope:   image.Rect(pad+828, controlsTop, windowW-pad, statusTop-8),
		status:  image.Rect(pad, statusTop, windowW-pad, statusTop+40),
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		// The first gesture opens the audio device so Play starts promptly.
		if err := g.sonifier.Ready(); err != nil {
			g.setError(err.Error())
		}
		switch {
		case pointInRect(mx, my, l.canvas):
			g.startStroke(mx-l.canvas.Min.X-2, my-l.canvas.Min.Y-2)
			return
		case pointInRect(mx, my, l.brushes):
			g.clickBrushes(my, l.brushes)
			return
		case pointInRect(mx, my, l.play):
			g.play()
			return
		case pointInRect(mx, my, l.clear):
			g.canvas.Fill(canvasColor)
			g.setStatus("Cleared")
			return
		case pointInRect(mx, my, l.size):
			g.dragging = 1
		case pointInRect(mx, my, l.volume):
			g.dragging = 2
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.drawing = false
		g.dragging = 0
		return
	}
	switch {
	case g.drawing:
		g.continueStroke(mx-l.canvas.Min.X-2, my-l.canvas.Min.Y-2)
	case g.dragging == 1:
		g.brushSize = minBrush + sliderValue(mx, l.size)*(maxBrush-minBrush)
	case g.dragging == 2:
		g.volume = sliderValue(mx, l.volume)
		g.sonifier.SetMasterVolume(g.volume)
	}
}

func (g *game) brushColor() color.NRGBA {
	return g.palette.Entries[g.brushIdx].Color
}

// Strokes are drawn without antialiasing so every painted pixel carries the
// exact brush color.
func (g *game) startStroke(x, y int) {
	g.drawing = true
	g.lastX, g.lastY = float32(x), float32(y)
	vector.DrawFilledCircle(g.canvas, g.lastX, g.lastY, float32(g.brushSize)/2, g.brushColor(), false)
}

func (g *game) continueStroke(x, y int) {
	fx, fy := float32(x), float32(y)
	if fx == g.lastX && fy == g.lastY {
		return
	}
	vector.StrokeLine(g.canvas, g.lastX, g.lastY, fx, fy, float32(g.brushSize), g.brushColor(), false)
	vector.DrawFilledCircle(g.canvas, fx, fy, float32(g.brushSize)/2, g.brushColor(), false)
	g.lastX, g.lastY = fx, fy
}

func (g *game) play() {
	g.canvas.ReadPixels(g.pixels)
	buf, err := raster.FromPremultiplied(canvasW, canvasH, g.pixels)
	if err != nil {
		g.setError(err.Error())
		return
	}
	sum, err := g.sonifier.SonifyRaster(buf)
	if err != nil {
		g.playing = false
		g.setError(err.Error())
		return
	}
	if sum.Notes == 0 {
		g.setStatus("Nothing to play")
		return
	}
	g.playing = true
	g.endsAt = sum.End
	g.setStatus(fmt.Sprintf("Playing %d notes", sum.Notes))
}

func (g *game) playButtonLabel() string {
	if g.playing {
		return "Again"
	}
	return "Play"
}

func (g *game) clickBrushes(my int, rect image.Rectangle) {
	idx := (my - rect.Min.Y - 8) / lineH
	if idx < 0 || idx >= g.palette.Len() {
		return
	}
	g.brushIdx = idx
	g.setStatus("Brush: " + g.palette.Entries[idx].Name)
}

func (g *game) drawBrushes(screen *ebiten.Image, rect image.Rectangle) {
	g.drawPanel(screen, rect)
	for i, e := range g.palette.Entries {
		y := rect.Min.Y + 8 + i*lineH
		if i == g.brushIdx {
			ebitenutil.DrawRect(screen, float64(rect.Min.X+4), float64(y), float64(rect.Dx()-8), float64(lineH), highlightColor)
		}
		ebitenutil.DrawRect(screen, float64(rect.Min.X+10), float64(y+4), float64(lineH-8), float64(lineH-8), e.Color)
		g.drawText(screen, e.Name, rect.Min.X+lineH+12, y)
	}
}

func (g *game) drawScope(screen *ebiten.Image, rect image.Rectangle) {
	inner := image.Rect(rect.Min.X+4, rect.Min.Y+4, rect.Max.X-4, rect.Max.Y-4)
	width, height := inner.Dx(), inner.Dy()
	if width < 2 || height < 4 {
		return
	}
	if g.scopeImg == nil || g.scopeImg.Bounds().Dx() != width || g.scopeImg.Bounds().Dy() != height {
		g.scopeImg = ebiten.NewImage(width, height)
	}
	g.scopeImg.Fill(color.RGBA{14, 16, 22, 255})
	midY := height / 2
	ebitenutil.DrawRect(g.scopeImg, 0, float64(midY), float64(width), 1, color.RGBA{40, 44, 58, 100})

	samples := g.analyzer.Snapshot(1024)
	waveColor := color.RGBA{80, 200, 255, 220}
	gain := float64(midY - 2)
	prevY := midY - int(float64(samples[0])*gain)
	for px := 1; px < width; px++ {
		si := px * len(samples) / width
		y := midY - int(float64(samples[si])*gain)
		ebitenutil.DrawLine(g.scopeImg, float64(px-1), float64(prevY), float64(px), float64(y), waveColor)
		prevY = y
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	screen.DrawImage(g.scopeImg, op)
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	msg := "Status: " + g.status
	if g.statusErr {
		msg = "Status: ERROR - " + g.status
	}
	maxChars := max(8, (rect.Dx()-16)/charW)
	g.drawText(screen, shortenEnd(msg, maxChars), rect.Min.X+8, rect.Min.Y+6)
}

func (g *game) drawSlider(screen *ebiten.Image, rect image.Rectangle, label string, frac float64) {
	g.drawPanel(screen, rect)
	g.drawText(screen, label, rect.Min.X+8, rect.Min.Y+8)

	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	if trackW < 20 {
		return
	}
	// Sunken track groove.
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW-1), 1, borderColor)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), 1, 7, borderColor)
	fillW := int(float64(trackW) * clamp(frac, 0, 1))
	if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(trackX+1), float64(trackY+1), float64(fillW-1), 6, sliderFillColor)
	}
	knobX := min(max(trackX+fillW-5, trackX-5), trackX+trackW-5)
	knobRect := image.Rect(knobX, trackY-4, knobX+10, trackY+12)
	ebitenutil.DrawRect(screen, float64(knobRect.Min.X), float64(knobRect.Min.Y), float64(knobRect.Dx()), float64(knobRect.Dy()), panelColor)
	drawBorder(screen, knobRect)
}

func sliderValue(mx int, rect image.Rectangle) float64 {
	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	if trackW <= 0 {
		return 0
	}
	return clamp(float64(mx-trackX)/float64(trackW), 0, 1)
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawDarkPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), color.RGBA{0, 0, 0, 255})
	drawSunkenBorder(screen, rect)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	g.drawPanel(screen, rect)
	labelW := len([]rune(label)) * charW
	x := rect.Min.X + (rect.Dx()-labelW)/2
	y := rect.Min.Y + (rect.Dy()-lineH)/2
	g.drawText(screen, label, x, y)
}

// drawBorder draws a raised bevel: highlight top and left, shadow bottom and right.
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		w := max(1, len([]rune(msg))*7)
		img = ebiten.NewImage(w, 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func run(palettePath, brush string) error {
	pal := palette.Default()
	if palettePath != "" {
		var err error
		if pal, err = palette.LoadFile(palettePath); err != nil {
			return err
		}
	}

	g, err := newGame(pal)
	if err != nil {
		return err
	}
	defer g.Close()
	if brush != "" {
		idx := pal.Index(brush)
		if idx < 0 {
			return fmt.Errorf("brush %q is not in the palette", brush)
		}
		g.brushIdx = idx
	}

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("sonodoodle")
	return ebiten.RunGame(g)
}

func main() {
	palettePath := flag.String("palette", "", "YAML palette file")
	brush := flag.String("brush", "", "initial brush color as #RGB or #RRGGBB")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*palettePath, *brush); err != nil {
		slog.Error("failed", "error", err)
		os.Exit(1)
	}
}
