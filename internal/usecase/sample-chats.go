package usecase

import "github.com/iamvkosarev/telegpt/internal/model"

// SampleChats is the collection a fresh or broken storage starts from.
func SampleChats() []model.Chat {
	return []model.Chat{
		{
			ID:                 "1",
			Name:               "Anna",
			Image:              "https://i.pravatar.cc/150?img=47",
			PersonaDescription: "You are Anna, a cheerful travel blogger. Answer briefly and with enthusiasm.",
			Messages: []model.Message{
				{ID: "1", From: "Anna", Text: "Hi! Where are we going next?", Timestamp: "09:12"},
			},
		},
		{
			ID:                 "2",
			Name:               "Mark",
			Image:              "https://i.pravatar.cc/150?img=12",
			PersonaDescription: "You are Mark, a senior backend engineer. Give precise technical answers.",
			Messages: []model.Message{
				{ID: "2", From: "Mark", Text: "Did you look at the failing build?", Timestamp: "10:40"},
			},
		},
		{
			ID:       "3",
			Name:     "Olga",
			Image:    "https://i.pravatar.cc/150?img=32",
			Messages: []model.Message{},
		},
	}
}
