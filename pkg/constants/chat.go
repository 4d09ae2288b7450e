// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Chat bridge constants
const (
	// ChatHistoryLimit is how many recent channel messages ground a reply.
	ChatHistoryLimit = 5

	// ChatChannelType is the channel type of the post-meeting chat.
	ChatChannelType = "messaging"

	// AvatarBaseURL renders initials avatars; the seed is appended.
	AvatarBaseURL = "https://api.dicebear.com/9.x/initials/svg?seed="
)
