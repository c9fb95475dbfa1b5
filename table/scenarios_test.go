package table

import (
	"context"
	"sync/atomic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/internal/testutil"
	"github.com/mangoautomation/dashboard-data-apis/notify"
	"github.com/mangoautomation/dashboard-data-apis/query"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
	"github.com/mangoautomation/dashboard-data-apis/settings"
)

var _ = Describe("Controller", func() {
	var (
		ctx        context.Context
		fetch      *fakeFetch
		store      *settings.MemoryStore
		recorder   *notify.Recorder
		controller *Controller[row]
	)

	BeforeEach(func() {
		ctx = context.Background()
		fetch = newFakeFetch(35)
		store = settings.NewMemoryStore()
		recorder = notify.NewRecorder()

		var err error
		controller, err = NewController[row](config.NewConfigMock().Default(), Options[row]{
			StorageKey:     "points",
			DefaultColumns: defaultColumns(),
			PageSize:       10,
			IDFunc:         rowID,
			Fetch:          fetch.Fetch,
			Store:          store,
			Notifier:       recorder,
			Logger:         testutil.TestLogger(),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(controller.Init(ctx)).To(Succeed())
	})

	AfterEach(func() {
		controller.Close()
	})

	Describe("SetFilter()", func() {
		It("Should persist the filter, reset to the first page and fetch once", func() {
			Expect(controller.GoToPage(ctx, 2)).To(Succeed())
			Expect(controller.Snapshot().Page).To(Equal(2))
			fetches := fetch.Count()

			Expect(controller.SetFilter(ctx, "enabled", "true")).To(Succeed())

			Expect(fetch.Count()).To(Equal(fetches + 1))
			Expect(fetch.Last().RQL).To(Equal("eq(enabled,true)&sort(+xid)&limit(10,0)"))

			snapshot := controller.Snapshot()
			Expect(snapshot.Page).To(Equal(1))
			Expect(snapshot.Filters).To(Equal(map[string]string{"enabled": "true"}))

			var saved settings.QuerySettings
			found, err := store.Load("points", &saved)
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(saved.Filters).To(Equal(map[string]string{"enabled": "true"}))
			Expect(saved.Page).To(Equal(1))
		})
	})

	Describe("Reload()", func() {
		var (
			calls   int32
			release chan struct{}
			stale   = row{XID: "STALE", Name: "stale"}
			fresh   = row{XID: "FRESH", Name: "fresh"}
		)

		BeforeEach(func() {
			atomic.StoreInt32(&calls, 0)
			release = make(chan struct{})
			fetch.respond = func(expr query.Expression) (m.Page[row], error) {
				if atomic.AddInt32(&calls, 1) == 1 {
					<-release
					return m.Page[row]{Items: []row{stale}, Total: 1}, nil
				}
				return m.Page[row]{Items: []row{fresh}, Total: 1}, nil
			}
		})

		It("Should only show the result of the latest query when an earlier one resolves last", func() {
			first := make(chan error, 1)
			go func() {
				first <- controller.Reload(ctx)
			}()
			Eventually(func() int32 { return atomic.LoadInt32(&calls) }).Should(Equal(int32(1)))

			Expect(controller.Reload(ctx)).To(Succeed())
			Expect(controller.Snapshot().Rows).To(Equal([]row{fresh}))

			close(release)
			Eventually(first).Should(Receive(Equal(ErrSuperseded)))

			snapshot := controller.Snapshot()
			Expect(snapshot.Rows).To(Equal([]row{fresh}))
			Expect(snapshot.State).To(Equal(Ready))
			Expect(recorder.All()).To(BeEmpty())
		})

		It("Should discard a query superseded by a cached page", func() {
			Expect(controller.GoToPage(ctx, 1)).To(Succeed())

			first := make(chan error, 1)
			go func() {
				first <- controller.Reload(ctx)
			}()
			Eventually(func() int32 { return atomic.LoadInt32(&calls) }).Should(Equal(int32(1)))

			Expect(controller.GoToPage(ctx, 1)).To(Succeed())
			close(release)
			Eventually(first).Should(Receive(Equal(ErrSuperseded)))
			Expect(controller.Snapshot().Rows).ToNot(ContainElement(stale))
		})

		It("Should cancel the query in flight on Close", func() {
			fetch.respond = func(expr query.Expression) (m.Page[row], error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return m.Page[row]{Items: []row{stale}, Total: 1}, nil
			}
			first := make(chan error, 1)
			go func() {
				first <- controller.Reload(ctx)
			}()
			Eventually(func() int32 { return atomic.LoadInt32(&calls) }).Should(Equal(int32(1)))

			controller.Close()
			close(release)
			Eventually(first).Should(Receive(Equal(ErrSuperseded)))
		})
	})
})
