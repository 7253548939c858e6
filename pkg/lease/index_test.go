package lease_test

import (
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fleetplacer/core/pkg/lease"
)

func TestLease(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "lease")
}

var _ = Describe("Index", func() {
	It("inserts only once for a given key", func() {
		idx := lease.NewIndex()
		Expect(idx.InsertIfAbsent("lease-1", "host-a")).To(BeTrue())
		Expect(idx.InsertIfAbsent("lease-1", "host-b")).To(BeFalse())

		host, ok := idx.Lookup("lease-1")
		Expect(ok).To(BeTrue())
		Expect(host).To(Equal("host-a"))
	})

	It("removes entries atomically", func() {
		idx := lease.NewIndex()
		idx.Set("lease-2", "host-c")
		idx.Remove("lease-2")
		_, ok := idx.Lookup("lease-2")
		Expect(ok).To(BeFalse())
	})

	It("tolerates concurrent insert/remove", func() {
		idx := lease.NewIndex()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				key := "k"
				idx.Set(key, "host")
				idx.Lookup(key)
				idx.Remove(key)
			}(i)
		}
		wg.Wait()
	})
})
