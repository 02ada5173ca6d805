package material

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/utils"
)

var ErrUnresolvedTexture = errors.New("texture file not found")

type decoder struct {
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

// decoders is keyed by sniffed type. Formats are picked explicitly since
// tga has no signature for image.Decode to match on.
var decoders = map[string]decoder{
	"png":  {png.Decode, png.DecodeConfig},
	"jpg":  {jpeg.Decode, jpeg.DecodeConfig},
	"gif":  {gif.Decode, gif.DecodeConfig},
	"bmp":  {bmp.Decode, bmp.DecodeConfig},
	"tif":  {tiff.Decode, tiff.DecodeConfig},
	"webp": {webp.Decode, webp.DecodeConfig},
	"tga":  {tga.Decode, tga.DecodeConfig},
}

// TextureInfo describes one exported texture.
type TextureInfo struct {
	Source string
	Name   string
	Type   string
	Width  int
	Height int
}

// TextureStore copies textures next to the exported scene, once per source file.
type TextureStore struct {
	SourceDir string
	// Dir is the output directory receiving the files.
	Dir    string
	Format string
	// Roots, when set, are the only directories images may be read from.
	Roots []string

	copied map[string]*TextureInfo
	names  map[string]string
}

func NewTextureStore(sourceDir, outDir string, cfg config.TextureConfig) *TextureStore {
	return &TextureStore{
		SourceDir: sourceDir,
		Dir:       filepath.Join(outDir, cfg.Directory),
		Format:    cfg.Format,
		copied:    make(map[string]*TextureInfo),
		names:     make(map[string]string),
	}
}

// SourcePath resolves an image path. A leading "//" is relative to the
// source directory, as are other relative paths.
func (ts *TextureStore) SourcePath(image string) string {
	p := filepath.FromSlash(strings.ReplaceAll(image, "\\", "/"))
	if strings.HasPrefix(image, "//") {
		p = filepath.FromSlash(strings.ReplaceAll(image[2:], "\\", "/"))
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(ts.SourceDir, p)
	}
	return filepath.Clean(p)
}

// Resolve copies the image on first use and returns its exported file name.
func (ts *TextureStore) Resolve(image string) (string, error) {
	src := ts.SourcePath(image)
	if info, ok := ts.copied[src]; ok {
		return info.Name, nil
	}

	if len(ts.Roots) != 0 && !utils.WithinAny(ts.Roots, src) {
		return "", errors.Wrapf(ErrUnresolvedTexture, "%q is outside the source directory", image)
	}

	st, err := os.Stat(src)
	if err != nil || !st.Mode().IsRegular() {
		return "", errors.Wrapf(ErrUnresolvedTexture, "%q", image)
	}

	info, err := ts.export(src)
	if err != nil {
		return "", err
	}
	ts.copied[src] = info
	logger.Debug("[texture] exported", zap.String("src", src), zap.String("name", info.Name),
		zap.String("type", info.Type), zap.Int("width", info.Width), zap.Int("height", info.Height))
	return info.Name, nil
}

// Exported lists every texture written so far.
func (ts *TextureStore) Exported() []*TextureInfo {
	result := make([]*TextureInfo, 0, len(ts.copied))
	for _, info := range ts.copied {
		result = append(result, info)
	}
	return result
}

func (ts *TextureStore) export(src string) (*TextureInfo, error) {
	if err := os.MkdirAll(ts.Dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "Failed to create texture dir %q", ts.Dir)
	}

	info := &TextureInfo{Source: src, Type: "unknown"}
	if kind, err := filetype.MatchFile(src); err == nil && kind != filetype.Unknown {
		info.Type = kind.Extension
	} else if strings.EqualFold(filepath.Ext(src), ".tga") {
		// tga has no signature to sniff
		info.Type = "tga"
	}

	name := filepath.Base(src)
	if ts.Format == config.TextureWebP && info.Type != "webp" {
		if img, err := decodeImage(src, info.Type); err != nil {
			logger.Warn("[texture] cannot decode, copying as is", zap.String("src", src), zap.Error(err))
		} else {
			b := img.Bounds()
			info.Width, info.Height = b.Dx(), b.Dy()
			info.Name = ts.uniqueName(strings.TrimSuffix(name, filepath.Ext(name))+".webp", src)
			if err := writeWebP(filepath.Join(ts.Dir, info.Name), img); err != nil {
				return nil, err
			}
			return info, nil
		}
	}

	if cfg, err := decodeConfig(src, info.Type); err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
	}
	info.Name = ts.uniqueName(name, src)
	if err := copyFile(filepath.Join(ts.Dir, info.Name), src); err != nil {
		return nil, err
	}
	return info, nil
}

// uniqueName keeps files with equal base names from different directories apart.
func (ts *TextureStore) uniqueName(name, src string) string {
	candidate := name
	ext := filepath.Ext(name)
	for i := 1; ; i++ {
		owner, taken := ts.names[candidate]
		if !taken || owner == src {
			ts.names[candidate] = src
			return candidate
		}
		candidate = strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(i) + ext
	}
}

func decodeConfig(path, typ string) (image.Config, error) {
	dec, ok := decoders[typ]
	if !ok {
		return image.Config{}, errors.Errorf("Unsupported image type %q", typ)
	}
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	return dec.decodeConfig(f)
}

func decodeImage(path, typ string) (image.Image, error) {
	dec, ok := decoders[typ]
	if !ok {
		return nil, errors.Errorf("Unsupported image type %q", typ)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dec.decode(f)
}

func writeWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return errors.Wrapf(err, "WebP encode %q", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close %q", path)
	}
	return nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "Failed to open %q", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "Failed to copy %q", src)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close %q", dst)
	}
	return nil
}
