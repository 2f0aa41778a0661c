package backup

import (
	"archive/tar"
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/crypto/pbkdf2"

	"multidb-backup/internal/logging"
)

// CompressionCodec selects the archive container compression
type CompressionCodec string

const (
	CodecZstd CompressionCodec = "zstd"
	CodecLZ4  CompressionCodec = "lz4"
)

// Sealed archive layout: magic, then the PBKDF2 salt, then the GCM nonce,
// then ciphertext over the whole compressed container. Because the container
// is sealed wholesale, the member listing is unreadable without the password.
var sealMagic = []byte("MDBSEAL1")

const (
	sealSaltSize   = 16
	pbkdf2Iters    = 120_000
	pbkdf2KeyBytes = 32
)

// Archiver packages extracted files into a single compressed tar container,
// optionally sealed with a password.
type Archiver struct {
	codec CompressionCodec
	level int
	log   *logging.Logger
}

// NewArchiver creates an archiver with the given codec and level. Level
// zero picks the codec default.
func NewArchiver(codec CompressionCodec, level int, log *logging.Logger) *Archiver {
	if codec == "" {
		codec = CodecZstd
	}
	return &Archiver{
		codec: codec,
		level: level,
		log:   log,
	}
}

// Extension returns the file extension archives of this configuration carry
func (a *Archiver) Extension(encrypted bool) string {
	ext := ".tar.zst"
	if a.codec == CodecLZ4 {
		ext = ".tar.lz4"
	}
	if encrypted {
		ext += ".enc"
	}
	return ext
}

// Package creates a single archive at outputPath containing the input files
// under their base names. A missing input is logged and skipped; the archive
// itself missing from disk after packaging is fatal. With a password the
// compressed container is sealed with AES-256-GCM (key derived via PBKDF2),
// hiding both contents and member names. The archive appears at outputPath
// atomically: it is staged under a partial name and renamed when complete.
func (a *Archiver) Package(files []string, outputPath, password string) (ArchiveInfo, error) {
	partial := outputPath + ".partial"
	defer os.Remove(partial)

	if err := a.writeContainer(files, partial); err != nil {
		return ArchiveInfo{}, err
	}

	if password != "" {
		if err := a.seal(partial, password); err != nil {
			return ArchiveInfo{}, err
		}
	}

	if err := os.Rename(partial, outputPath); err != nil {
		return ArchiveInfo{}, NewPackagingError("finalizing archive", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return ArchiveInfo{}, NewPackagingError(fmt.Sprintf("archive not found after packaging: %s", outputPath), err)
	}

	a.log.Infof("archive created: %s (%s)", filepath.Base(outputPath), FormatSize(info.Size()))
	return ArchiveInfo{
		Path:      outputPath,
		Size:      info.Size(),
		Encrypted: password != "",
	}, nil
}

// writeContainer streams the input files into a compressed tar at destPath
func (a *Archiver) writeContainer(files []string, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return NewPackagingError("creating archive file", err)
	}
	defer out.Close()

	compressor, err := a.newCompressor(out)
	if err != nil {
		return NewPackagingError("initializing compressor", err)
	}

	tw := tar.NewWriter(compressor)
	added := 0

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			a.log.Warnf("archive input missing, skipped: %s", file)
			continue
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return NewPackagingError(fmt.Sprintf("building tar header for %s", file), err)
		}
		hdr.Name = filepath.Base(file)

		if err := tw.WriteHeader(hdr); err != nil {
			return NewPackagingError(fmt.Sprintf("writing tar header for %s", file), err)
		}

		f, err := os.Open(file)
		if err != nil {
			return NewPackagingError(fmt.Sprintf("opening %s", file), err)
		}
		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return NewPackagingError(fmt.Sprintf("archiving %s", file), err)
		}
		f.Close()
		added++
	}

	if err := tw.Close(); err != nil {
		return NewPackagingError("closing tar stream", err)
	}
	if err := compressor.Close(); err != nil {
		return NewPackagingError("closing compressor", err)
	}

	a.log.Debugf("packaged %d of %d input file(s)", added, len(files))
	return nil
}

func (a *Archiver) newCompressor(out io.Writer) (io.WriteCloser, error) {
	switch a.codec {
	case CodecLZ4:
		w := lz4.NewWriter(out)
		if a.level > 0 {
			if err := w.Apply(lz4.CompressionLevelOption(lz4CompressionLevel(a.level))); err != nil {
				return nil, err
			}
		}
		return w, nil
	default:
		level := zstd.SpeedDefault
		if a.level > 0 {
			level = zstd.EncoderLevelFromZstd(a.level)
		}
		return zstd.NewWriter(out, zstd.WithEncoderLevel(level))
	}
}

func lz4CompressionLevel(level int) lz4.CompressionLevel {
	levels := []lz4.CompressionLevel{
		lz4.Fast,
		lz4.Level1, lz4.Level2, lz4.Level3,
		lz4.Level4, lz4.Level5, lz4.Level6,
		lz4.Level7, lz4.Level8, lz4.Level9,
	}
	if level < 0 || level >= len(levels) {
		return lz4.Level9
	}
	return levels[level]
}

// seal encrypts the file at path in place with AES-256-GCM
func (a *Archiver) seal(path, password string) error {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return NewPackagingError("reading container for sealing", err)
	}

	salt := make([]byte, sealSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return NewPackagingError("generating salt", err)
	}

	gcm, err := newSealCipher(password, salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return NewPackagingError("generating nonce", err)
	}

	var sealed bytes.Buffer
	sealed.Write(sealMagic)
	sealed.Write(salt)
	sealed.Write(nonce)
	sealed.Write(gcm.Seal(nil, nonce, plaintext, nil))

	if err := os.WriteFile(path, sealed.Bytes(), 0o600); err != nil {
		return NewPackagingError("writing sealed archive", err)
	}
	return nil
}

func newSealCipher(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iters, pbkdf2KeyBytes, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewPackagingError("creating AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewPackagingError("creating GCM cipher", err)
	}
	return gcm, nil
}

// IsSealed reports whether the file at path is a password-sealed archive
func IsSealed(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	magic := make([]byte, len(sealMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return false, nil
	}
	return bytes.Equal(magic, sealMagic), nil
}

// Unpack extracts an archive produced by Package into destDir. Sealed
// archives require the original password.
func (a *Archiver) Unpack(archivePath, destDir, password string) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return NewPackagingError("reading archive", err)
	}

	if bytes.HasPrefix(data, sealMagic) {
		data, err = unseal(data, password)
		if err != nil {
			return err
		}
	}

	decompressor, err := a.newDecompressor(bytes.NewReader(data))
	if err != nil {
		return NewPackagingError("initializing decompressor", err)
	}
	defer decompressor.Close()

	tr := tar.NewReader(decompressor)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return NewPackagingError("reading tar stream", err)
		}

		// Members were stored under base names; reject anything else.
		name := filepath.Base(filepath.Clean(hdr.Name))
		if name == "." || name == string(filepath.Separator) {
			continue
		}

		out, err := os.Create(filepath.Join(destDir, name))
		if err != nil {
			return NewPackagingError(fmt.Sprintf("creating %s", name), err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return NewPackagingError(fmt.Sprintf("extracting %s", name), err)
		}
		out.Close()
	}
}

func (a *Archiver) newDecompressor(in io.Reader) (io.ReadCloser, error) {
	switch a.codec {
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(in)), nil
	default:
		r, err := zstd.NewReader(in)
		if err != nil {
			return nil, err
		}
		return r.IOReadCloser(), nil
	}
}

func unseal(sealed []byte, password string) ([]byte, error) {
	body := sealed[len(sealMagic):]
	if len(body) < sealSaltSize {
		return nil, NewPackagingError("sealed archive truncated", nil)
	}
	salt, body := body[:sealSaltSize], body[sealSaltSize:]

	gcm, err := newSealCipher(password, salt)
	if err != nil {
		return nil, err
	}
	if len(body) < gcm.NonceSize() {
		return nil, NewPackagingError("sealed archive truncated", nil)
	}
	nonce, ciphertext := body[:gcm.NonceSize()], body[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, NewPackagingError("unsealing archive failed (wrong password?)", err)
	}
	return plaintext, nil
}
