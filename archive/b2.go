// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/kothar/go-backblaze"
	"github.com/rs/zerolog/log"
)

var ErrBucketNotFound = errors.New("bucket not found")

// B2 stores raw filing documents in a Backblaze B2 bucket
type B2 struct {
	bucketName string
	bucket     *backblaze.Bucket
}

// NewB2 authorizes against Backblaze and looks up the bucket
func NewB2(applicationID, applicationKey, bucketName string) (*B2, error) {
	b2, err := backblaze.NewB2(backblaze.Credentials{
		KeyID:          applicationID,
		ApplicationKey: applicationKey,
	})
	if err != nil {
		log.Error().Err(err).Str("BucketName", bucketName).Msg("authorize backblaze failed")
		return nil, err
	}

	bucket, err := b2.Bucket(bucketName)
	if err != nil {
		log.Error().Err(err).Str("BucketName", bucketName).Msg("lookup bucket failed")
		return nil, err
	}
	if bucket == nil {
		log.Error().Str("BucketName", bucketName).Msg("bucket does not exist")
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucketName)
	}

	return &B2{
		bucketName: bucketName,
		bucket:     bucket,
	}, nil
}

// Put uploads body under key
func (archive *B2) Put(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	metadata := make(map[string]string)
	file, err := archive.bucket.UploadFile(key, metadata, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("FileName", key).Str("BucketName", archive.bucketName).Msg("save file to backblaze failed")
		return err
	}

	log.Info().Str("FileName", file.Name).Int64("Size", file.ContentLength).Str("ID", file.ID).Msg("uploaded file to backblaze")
	return nil
}

// Key is the object name of a filing document: <cik>/<accession>/<filename>
func Key(cik, accession, filename string) string {
	filename = path.Base(strings.TrimSpace(filename))
	return path.Join(strings.TrimLeft(cik, "0"), accession, filename)
}
