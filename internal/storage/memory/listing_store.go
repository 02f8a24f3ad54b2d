package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// ListingStore records listings once per (company, link).
type ListingStore struct {
	mu       sync.RWMutex
	listings []crawler.JobListing
	index    map[listingKey]struct{}
}

type listingKey struct {
	company string
	link    string
}

// NewListingStore constructs an empty ListingStore.
func NewListingStore() *ListingStore {
	return &ListingStore{index: make(map[listingKey]struct{})}
}

// RecordListing implements crawler.ListingRecorder. Duplicates are ignored.
func (s *ListingStore) RecordListing(_ context.Context, listing crawler.JobListing) error {
	key := listingKey{company: listing.Company, link: listing.NormalizedLink}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[key]; ok {
		return nil
	}
	s.index[key] = struct{}{}
	s.listings = append(s.listings, listing)
	return nil
}

// DeleteCompany removes every listing for company.
func (s *ListingStore) DeleteCompany(_ context.Context, company string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.listings[:0]
	removed := 0
	for _, listing := range s.listings {
		if listing.Company == company {
			delete(s.index, listingKey{company: listing.Company, link: listing.NormalizedLink})
			removed++
			continue
		}
		kept = append(kept, listing)
	}
	s.listings = kept
	return removed, nil
}

// Listings returns a copy of the recorded listings in insertion order.
func (s *ListingStore) Listings() []crawler.JobListing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.JobListing(nil), s.listings...)
}
