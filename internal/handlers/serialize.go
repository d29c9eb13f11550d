package handlers

import (
	"time"

	"craftboost/api/internal/models"
)

// serializedPost is the wire representation of a post. Absent optional
// fields serialize as null, never as empty strings.
type serializedPost struct {
	ID             string   `json:"id"`
	OriginalImage  string   `json:"originalImage"`
	ProcessedImage *string  `json:"processedImage"`
	Captions       []string `json:"captions"`
	Hashtags       []string `json:"hashtags"`
	ProductTitle   *string  `json:"productTitle"`
	Status         string   `json:"status"`
	ErrorMessage   *string  `json:"errorMessage"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

func serializePost(post models.Post) serializedPost {
	captions := post.Captions
	if captions == nil {
		captions = []string{}
	}
	hashtags := post.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	return serializedPost{
		ID:             post.ID,
		OriginalImage:  post.OriginalImage,
		ProcessedImage: post.ProcessedImage,
		Captions:       captions,
		Hashtags:       hashtags,
		ProductTitle:   post.ProductTitle,
		Status:         string(post.Status),
		ErrorMessage:   post.ErrorMessage,
		CreatedAt:      post.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      post.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func serializePosts(posts []models.Post) []serializedPost {
	out := make([]serializedPost, 0, len(posts))
	for _, post := range posts {
		out = append(out, serializePost(post))
	}
	return out
}
