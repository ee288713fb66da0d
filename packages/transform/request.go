package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/header"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

var (
	ErrNestedFormField = errors.New("nested form field")
	ErrNoCodec         = errors.New("no codec configured")
	ErrInvalidPart     = errors.New("invalid multipart part")
)

// TransformToJSON resolves every reference in the payload and encodes it as JSON.
func TransformToJSON(ctx context.Context, caps Capabilities, payload *node.Node, op string, _ *header.Set) (Body, error) {
	return encodeUnwrapped(ctx, caps, payload, op, codec.JSON)
}

// TransformToYAML resolves every reference in the payload and encodes it as YAML.
func TransformToYAML(ctx context.Context, caps Capabilities, payload *node.Node, op string, _ *header.Set) (Body, error) {
	return encodeUnwrapped(ctx, caps, payload, op, codec.YAML)
}

// TransformToHyperlambda encodes the payload as Hyperlambda. References are
// native to the format and are kept as expressions.
func TransformToHyperlambda(ctx context.Context, caps Capabilities, payload *node.Node, op string, _ *header.Set) (Body, error) {
	if caps.Codec == nil {
		return Body{}, fmt.Errorf("%w: [%s]", ErrNoCodec, op)
	}
	s, err := caps.Codec.Encode(ctx, codec.Hyperlambda, payload)
	if err != nil {
		return Body{}, err
	}
	return StringBody(s), nil
}

func encodeUnwrapped(ctx context.Context, caps Capabilities, payload *node.Node, op, format string) (Body, error) {
	if caps.Codec == nil {
		return Body{}, fmt.Errorf("%w: [%s]", ErrNoCodec, op)
	}
	// the declaration is left untouched
	unwrapped := payload.Clone()
	if err := node.Unwrap(ctx, unwrapped, caps.Resolver, op, true); err != nil {
		return Body{}, err
	}
	s, err := caps.Codec.Encode(ctx, format, unwrapped)
	if err != nil {
		return Body{}, err
	}
	return StringBody(s), nil
}

// TransformToURLEncoded flattens one level of children into name=value pairs.
func TransformToURLEncoded(ctx context.Context, caps Capabilities, payload *node.Node, op string, _ *header.Set) (Body, error) {
	var sb strings.Builder
	for _, c := range payload.Children() {
		if c.Len() > 0 {
			return Body{}, fmt.Errorf("%w: 'application/x-www-form-urlencoded' requests can only handle one level of arguments, and node '%s' had children", ErrNestedFormField, c.Name)
		}
		v, err := node.ResolveValue(ctx, c.Value, caps.Resolver, op)
		if err != nil {
			return Body{}, err
		}
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(c.Name)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(v.Text()))
	}
	return StringBody(sb.String()), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// TransformToMultipart builds a multipart/form-data entity. Scalar children
// become form fields. Structured children become parts and take a [filename]
// (read from the file root) or a [content] child, plus optional [name] and
// [Content-Type] children. The boundary-bearing Content-Type is written back
// into headers.
func TransformToMultipart(ctx context.Context, caps Capabilities, payload *node.Node, op string, headers *header.Set) (Body, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range payload.Children() {
		var err error
		if field.Len() == 0 {
			err = writeFormField(ctx, caps, writer, field, op)
		} else {
			err = writePart(ctx, caps, writer, field, op)
		}
		if err != nil {
			return Body{}, err
		}
	}

	if err := writer.Close(); err != nil {
		return Body{}, err
	}

	headers.Set("Content-Type", writer.FormDataContentType())
	return BytesBody(body.Bytes()), nil
}

func writeFormField(ctx context.Context, caps Capabilities, writer *multipart.Writer, field *node.Node, op string) error {
	v, err := node.ResolveValue(ctx, field.Value, caps.Resolver, op)
	if err != nil {
		return err
	}
	if raw, ok := v.Raw(); ok {
		w, err := writer.CreateFormField(field.Name)
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err
	}
	return writer.WriteField(field.Name, v.Text())
}

func writePart(ctx context.Context, caps Capabilities, writer *multipart.Writer, field *node.Node, op string) error {
	args := make(map[string]node.Value, field.Len())
	for _, c := range field.Children() {
		if c.Len() > 0 {
			return fmt.Errorf("%w: [%s] child [%s] cannot have children", ErrInvalidPart, field.Name, c.Name)
		}
		if _, seen := args[c.Name]; seen {
			continue
		}
		v, err := node.ResolveValue(ctx, c.Value, caps.Resolver, op)
		if err != nil {
			return err
		}
		args[c.Name] = v
	}

	contentType := args["Content-Type"].Text()
	displayName := args["name"].Text()

	if fn, ok := args["filename"]; ok {
		path, err := ResolveFile(ctx, caps.Root, fn.Text())
		if err != nil {
			return err
		}
		if displayName == "" {
			displayName = filepath.Base(path)
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFileNotFound, err)
		}
		defer file.Close()

		part, err := writer.CreatePart(partHeader(field.Name, displayName, contentType))
		if err != nil {
			return err
		}
		_, err = io.Copy(part, file)
		return err
	}

	content, ok := args["content"]
	if !ok {
		return fmt.Errorf("%w: [%s] needs a [filename] or [content] child", ErrInvalidPart, field.Name)
	}
	raw, isBytes := content.Raw()
	if contentType == "" {
		if isBytes {
			contentType = "application/octet-stream"
		} else {
			contentType = "text/plain; charset=utf-8"
		}
	}
	part, err := writer.CreatePart(partHeader(field.Name, displayName, contentType))
	if err != nil {
		return err
	}
	if isBytes {
		_, err = part.Write(raw)
	} else {
		_, err = io.WriteString(part, content.Text())
	}
	return err
}

func partHeader(name, filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(name))
	if filename != "" {
		disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(filename))
	}
	h.Set("Content-Disposition", disposition)
	h.Set("Content-Type", contentType)
	return h
}
