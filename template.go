package ogcard

import (
	"context"
	"fmt"
	"html/template"
	"strings"
)

// cardRenderer produces the card HTML document for one request.
type cardRenderer interface {
	RenderDocument(ctx context.Context, title, content string, image *ImageReference) (string, error)
}

// cardTemplate renders the fixed two-column card layout. Title and
// content only ever reach the document through template text nodes, so
// the template engine escapes them unconditionally; there is no code
// path that interpolates request text into markup directly.
type cardTemplate struct {
	tmpl  *template.Template
	style Style
}

// newCardTemplate parses the layout with the given style baked in.
// Panics if the layout fails to parse (programmer error).
func newCardTemplate(style Style) *cardTemplate {
	filled, ok := style.fillDefaults()
	if !ok {
		filled = DefaultStyle()
	}
	tmpl, err := template.New("card").Parse(cardLayout)
	if err != nil {
		panic("failed to parse card layout: " + err.Error())
	}
	return &cardTemplate{tmpl: tmpl, style: filled}
}

// cardData is the template context. Image.src is a template.URL because
// it is produced internally by the asset resolver, never from the
// title/content path.
type cardData struct {
	Width      int
	Height     int
	Badge      string
	Accent     string
	AccentAlt  string
	Background string
	Title      string
	Content    string
	ImageSrc   template.URL
	HasImage   bool
}

// RenderDocument builds the complete HTML document. Same inputs always
// produce byte-identical output.
func (c *cardTemplate) RenderDocument(ctx context.Context, title, content string, image *ImageReference) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data := cardData{
		Width:      CardWidth,
		Height:     CardHeight,
		Badge:      c.style.BadgeText,
		Accent:     c.style.Accent,
		AccentAlt:  c.style.AccentAlt,
		Background: c.style.Background,
		Title:      title,
		Content:    content,
	}
	if image != nil {
		data.ImageSrc = image.src
		data.HasImage = true
	}

	var buf strings.Builder
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering card layout: %w", err)
	}
	return buf.String(), nil
}

// cardLayout is the single fixed layout: white rounded card on a tinted
// background, text column left, image column right, two translucent
// accent circles behind. The visual design is a constant; only the
// style colors and badge text vary, and those come from configuration.
const cardLayout = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Open Graph Image</title>
  <style>
    body {
      display: flex;
      justify-content: center;
      align-items: center;
      width: {{.Width}}px;
      height: {{.Height}}px;
      margin: 0;
      padding: 0;
      font-family: Arial, sans-serif;
      background-color: {{.Background}};
      box-sizing: border-box;
    }
    .container {
      position: relative;
      display: flex;
      width: 1100px;
      height: 530px;
      background: white;
      border-radius: 10px;
      box-shadow: 0 4px 8px rgba(0, 0, 0, 0.1);
    }
    .content-side {
      display: flex;
      flex-direction: column;
      justify-content: flex-start;
      padding: 40px;
      width: 70%;
    }
    .image-side {
      display: flex;
      align-items: center;
      justify-content: center;
      width: 30%;
      padding: 40px;
    }
    .badge {
      color: {{.Accent}};
      font-size: 14px;
      font-weight: bold;
      margin-bottom: 20px;
    }
    .title {
      font-size: 36px;
      margin-bottom: 20px;
      font-weight: bold;
      color: #333;
      line-height: 1.2;
    }
    .description {
      font-size: 24px;
      color: #555;
      margin-bottom: 20px;
      white-space: nowrap;
      overflow: hidden;
      text-overflow: ellipsis;
    }
    .background-shapes {
      position: absolute;
      top: 0;
      left: 0;
      width: 100%;
      height: 100%;
      z-index: -1;
    }
    .background-shape {
      position: absolute;
      background: {{.Accent}};
      border-radius: 50%;
      opacity: 0.5;
    }
    .shape-1 {
      width: 400px;
      height: 400px;
      top: -100px;
      left: -100px;
    }
    .shape-2 {
      width: 500px;
      height: 500px;
      bottom: -150px;
      right: -150px;
      background: {{.AccentAlt}};
    }
    .image {
      max-width: 100%;
      max-height: 100%;
      border-radius: 10px;
      box-shadow: 0 4px 8px rgba(0, 0, 0, 0.1);
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="content-side">
      <div class="badge">{{.Badge}}</div>
      <div class="title">{{.Title}}</div>
      <div class="description">{{.Content}}</div>
    </div>
    <div class="image-side">
      {{if .HasImage}}<img src="{{.ImageSrc}}" class="image" alt="Image"/>{{end}}
    </div>
    <div class="background-shapes">
      <div class="background-shape shape-1"></div>
      <div class="background-shape shape-2"></div>
    </div>
  </div>
</body>
</html>
`
