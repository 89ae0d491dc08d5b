// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package taxonomy

import (
	"context"
	"errors"
	"fmt"
)

// seedNode describes one node of the base taxonomy.
type seedNode struct {
	name     string
	display  string
	keywords []string
	children []seedNode
}

// baseTaxonomy is the hand-authored starter hierarchy. Keywords feed the
// classification engine's exact-match vocabulary.
var baseTaxonomy = []seedNode{
	{
		name: "fashion", display: "Fashion",
		keywords: []string{"style", "outfit", "ootd", "clothing"},
		children: []seedNode{
			{name: "streetwear", display: "Streetwear", keywords: []string{"sneakers", "hypebeast"}},
			{name: "vintage fashion", display: "Vintage Fashion", keywords: []string{"thrift", "retro"}},
			{name: "accessories", display: "Accessories", keywords: []string{"jewelry", "bags", "watches"}},
		},
	},
	{
		name: "travel", display: "Travel",
		keywords: []string{"wanderlust", "vacation", "trip"},
		children: []seedNode{
			{name: "backpacking", display: "Backpacking", keywords: []string{"hostel", "budget travel"}},
			{name: "city guides", display: "City Guides", keywords: []string{"citybreak", "weekend trip"}},
			{name: "beaches", display: "Beaches", keywords: []string{"island", "coast"}},
		},
	},
	{
		name: "food", display: "Food",
		keywords: []string{"cooking", "recipe", "foodie"},
		children: []seedNode{
			{name: "baking", display: "Baking", keywords: []string{"sourdough", "pastry", "dessert"}},
			{name: "vegan", display: "Vegan", keywords: []string{"plant based", "vegetarian"}},
			{name: "restaurants", display: "Restaurants", keywords: []string{"dining", "brunch"}},
		},
	},
	{
		name: "fitness", display: "Fitness",
		keywords: []string{"workout", "gym", "training"},
		children: []seedNode{
			{name: "yoga", display: "Yoga", keywords: []string{"meditation", "mindfulness"}},
			{name: "running", display: "Running", keywords: []string{"marathon", "trail running"}},
			{name: "strength training", display: "Strength Training", keywords: []string{"lifting", "powerlifting"}},
		},
	},
	{
		name: "art", display: "Art",
		keywords: []string{"artist", "artwork", "creative"},
		children: []seedNode{
			{name: "illustration", display: "Illustration", keywords: []string{"drawing", "sketch"}},
			{name: "photography", display: "Photography", keywords: []string{"photo", "camera"}},
			{name: "ceramics", display: "Ceramics", keywords: []string{"pottery", "clay"}},
		},
	},
	{
		name: "technology", display: "Technology",
		keywords: []string{"tech", "gadgets"},
		children: []seedNode{
			{name: "programming", display: "Programming", keywords: []string{"coding", "developer", "software"}},
			{name: "gaming", display: "Gaming", keywords: []string{"videogames", "esports"}},
		},
	},
	{
		name: "music", display: "Music",
		keywords: []string{"songs", "concert", "playlist"},
		children: []seedNode{
			{name: "indie", display: "Indie", keywords: []string{"indie rock", "alternative"}},
			{name: "electronic", display: "Electronic", keywords: []string{"techno", "house", "dj"}},
		},
	},
	{
		name: "home", display: "Home",
		keywords: []string{"interior", "decor", "apartment"},
		children: []seedNode{
			{name: "plants", display: "Plants", keywords: []string{"houseplants", "gardening"}},
			{name: "diy", display: "DIY", keywords: []string{"crafts", "renovation"}},
		},
	},
}

// Seed inserts the base taxonomy. It is idempotent: nodes whose name already
// exists under their parent are skipped. Returns the number of interests
// created.
func Seed(ctx context.Context, store *Store) (int, error) {
	created := 0
	for _, root := range baseTaxonomy {
		n, err := seedSubtree(ctx, store, "", root)
		if err != nil {
			return created, err
		}
		created += n
	}
	return created, nil
}

func seedSubtree(ctx context.Context, store *Store, parentID string, node seedNode) (int, error) {
	created := 0
	in, err := store.Create(ctx, CreateParams{
		ParentID:    parentID,
		Name:        node.name,
		DisplayName: node.display,
		Keywords:    node.keywords,
	})
	switch {
	case err == nil:
		created++
	case errors.Is(err, ErrDuplicateName):
		// Already seeded; find the existing node so children can attach.
		in, err = findChildByName(ctx, store, parentID, node.name)
		if err != nil {
			return created, err
		}
	default:
		return created, fmt.Errorf("seed %q: %w", node.name, err)
	}

	for _, child := range node.children {
		n, err := seedSubtree(ctx, store, in.ID, child)
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

func findChildByName(ctx context.Context, store *Store, parentID, name string) (*Interest, error) {
	siblings, err := store.repo.Children(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children of %q: %w", parentID, err)
	}
	for _, sib := range siblings {
		if sib.Name == name {
			return sib, nil
		}
	}
	return nil, fmt.Errorf("seed node %q: %w", name, ErrNotFound)
}
