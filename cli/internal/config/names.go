package config

import (
	"math/rand"
	"strings"
)

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "bright", "gentle", "brave", "calm", "swift",
	"silent", "bouncy", "fuzzy", "plucky", "merry", "peppy",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"duckling", "fawn", "lamb", "porcupine", "raccoon", "beaver", "seahorse", "dolphin", "narwhal",
	"penguin", "flamingo", "pelican", "sparrow", "robin", "toucan", "parrot",
}

// RandomName returns a friendly display name such as "Sleepy Otter" for
// users who did not pick one.
func RandomName() string {
	adj := adjectives[rand.Intn(len(adjectives))]
	animal := animals[rand.Intn(len(animals))]
	return title(adj) + " " + title(animal)
}

func title(s string) string {
	return strings.ToUpper(s[:1]) + s[1:]
}
