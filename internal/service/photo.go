package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	// decoders for photos captured as PNG or GIF
	_ "image/gif"
	_ "image/png"

	"github.com/MKhiriev/go-fish-log/internal/adapter"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/models"
)

const (
	photoQuality      = 72
	photoEncVersion   = "v1"
	mimeJPEG          = "image/jpeg"
	mimeOctetStream   = "application/octet-stream"
	metaEncrypted     = "encrypted"
	metaMime          = "mime"
	plainPhotoFolder  = "images"
	sealedPhotoFolder = "enc_photos"
)

// userBlobPrefix is the blob key prefix of everything stored for userID.
func userBlobPrefix(userID string) string {
	return "users/" + userID + "/"
}

func photoKey(userID, folder, hash string) string {
	return userBlobPrefix(userID) + folder + "/" + hash
}

// parseDataURI splits "data:<mime>;base64,<payload>".
func parseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidPhoto
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidPhoto
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, ErrInvalidPhoto
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidPhoto, err)
	}
	if mime == "" {
		mime = mimeOctetStream
	}
	return mime, data, nil
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// compressPhoto re-encodes the image as JPEG. The original is kept when it
// cannot be decoded or the JPEG is not smaller.
func compressPhoto(data []byte, mime string) ([]byte, string) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mime
	}
	var buf bytes.Buffer
	if err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: photoQuality}); err != nil {
		return data, mime
	}
	if buf.Len() >= len(data) {
		return data, mime
	}
	return buf.Bytes(), mimeJPEG
}

// storePhoto moves an inline photo into content-addressed blob storage. The
// bytes are sealed first when the engine has a key. If the blob store
// refuses the upload the compressed photo stays inline and the write goes on.
func (s *dataService) storePhoto(ctx context.Context, userID string, fish models.FishCaught) models.FishCaught {
	if !fish.HasInlinePhoto() {
		return fish
	}
	log := logger.FromContext(ctx)

	mime, raw, err := parseDataURI(fish.Photo)
	if err != nil {
		log.Warn().Err(err).Str("func", "dataService.storePhoto").Str("local_id", fish.ID).Msg("photo left inline")
		return fish
	}
	data, mime := compressPhoto(raw, mime)
	hash := utils.PhotoHash(data)

	key := photoKey(userID, plainPhotoFolder, hash)
	body := data
	meta := adapter.BlobMeta{ContentType: mime}
	var enc *models.PhotoEncryption

	if s.engine.IsReady() {
		sealed, err := s.engine.EncryptBytes(data)
		if err != nil {
			log.Warn().Err(err).Str("func", "dataService.storePhoto").Msg("photo encryption failed, uploading plaintext")
		} else {
			key = photoKey(userID, sealedPhotoFolder, hash)
			body = sealed
			meta = adapter.BlobMeta{
				ContentType: mimeOctetStream,
				Metadata:    map[string]string{metaEncrypted: "true", metaMime: mime},
			}
			enc = &models.PhotoEncryption{Version: photoEncVersion, Mime: mime}
		}
	}

	if err = s.blobs.Put(ctx, key, body, meta); err != nil {
		log.Warn().Err(err).
			Str("func", "dataService.storePhoto").
			Str("blob_key", key).
			Msg("blob store unavailable, keeping compressed photo inline")
		fish.Photo = dataURI(mime, data)
		return fish
	}

	url, err := s.blobs.URL(ctx, key)
	if err != nil {
		log.Debug().Err(err).Str("func", "dataService.storePhoto").Msg("no download url for photo")
	}

	fish.Photo = ""
	fish.PhotoPath = key
	fish.PhotoHash = hash
	fish.PhotoMime = mime
	fish.PhotoURL = url
	fish.PhotoEnc = enc
	return fish
}

func (s *dataService) GetFishPhoto(ctx context.Context, id string) ([]byte, string, error) {
	fish, err := s.getFishCaught(ctx, id)
	if err != nil {
		return nil, "", err
	}

	switch {
	case fish.HasStoredPhoto():
		data, meta, err := s.blobs.Get(ctx, fish.PhotoPath)
		if err != nil {
			return nil, "", fmt.Errorf("photo %s: %w", fish.PhotoPath, err)
		}

		mime := fish.PhotoMime
		if mime == "" {
			mime = meta.Metadata[metaMime]
		}
		if fish.PhotoEnc != nil || meta.Metadata[metaEncrypted] == "true" {
			if data, err = s.engine.DecryptBytes(data); err != nil {
				return nil, "", fmt.Errorf("decrypt photo %s: %w", fish.PhotoPath, err)
			}
			if fish.PhotoEnc != nil && fish.PhotoEnc.Mime != "" {
				mime = fish.PhotoEnc.Mime
			}
		}
		if mime == "" {
			mime = meta.ContentType
		}
		return data, mime, nil

	case fish.HasInlinePhoto():
		mime, data, err := parseDataURI(fish.Photo)
		if err != nil {
			return nil, "", err
		}
		return data, mime, nil
	}
	return nil, "", ErrNoPhoto
}
