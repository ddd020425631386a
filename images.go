package lemystere

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 1200
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
)

// processImage decodes an image from src, downscales it to maxImageWidth
// when wider, and re-encodes it as JPEG.
func processImage(src io.Reader, originalName string) (Upload, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Upload{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxImageWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Upload{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return Upload{
		Filename: imageFilename(originalName),
		Width:    w,
		Height:   h,
		Size:     buf.Len(),
	}, buf.Bytes(), nil
}

// imageFilename slugifies the base name of an upload and gives it a .jpg
// extension.
func imageFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	slug := Slugify(strings.NewReplacer("_", " ", ".", " ").Replace(base))
	if slug == "" {
		slug = "image"
	}
	return slug + ".jpg"
}

// writeUnique writes data to a new file in dir named filename, appending a
// counter until the name is free. The file is created with O_EXCL so two
// uploads never claim the same name. It returns the name used.
func writeUnique(dir, filename string, data []byte) (string, error) {
	base := strings.TrimSuffix(filename, ".jpg")
	candidate := filename
	for counter := 2; ; counter++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", err
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", err
		}
		return candidate, nil
	}
}

func (a *App) handleUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: "no image file provided"}
	}
	if file.Size > maxUploadSize {
		return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: "file too large (max 10MB)"}
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	up, data, err := processImage(src, file.Filename)
	if err != nil {
		return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: "invalid image: " + err.Error()}
	}

	dir := a.Config.UploadDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	name, err := writeUnique(dir, up.Filename, data)
	if err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	up.Filename = name
	up.URL = "/uploads/" + up.Filename

	a.Logger.Info("image uploaded", "file", up.Filename, "width", up.Width, "height", up.Height)
	return c.JSON(http.StatusCreated, up)
}
