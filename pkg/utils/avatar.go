// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"net/url"

	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

// InitialsAvatarURL returns an initials avatar image for seed, usually a display name.
func InitialsAvatarURL(seed string) string {
	return constants.AvatarBaseURL + url.QueryEscape(seed)
}
