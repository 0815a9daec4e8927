package program_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/scclang/cmn/errkind"
	"github.com/NVIDIA/scclang/collective"
	"github.com/NVIDIA/scclang/ir"
	"github.com/NVIDIA/scclang/program"
	"github.com/NVIDIA/scclang/topology"
)

var _ = Describe("program context", func() {
	It("rejects a nested Enter while a program is already in scope", func() {
		b := program.New("outer", collective.AllReduce(2, 1), topology.FullyConnected(2, "t"))
		Expect(b.Enter()).To(Succeed())
		defer b.Exit()

		other := program.New("inner", collective.AllReduce(2, 1), topology.FullyConnected(2, "t"))
		err := other.Enter()
		Expect(err).To(HaveOccurred())
		Expect(errkind.Is(err, errkind.NestedContext)).To(BeTrue())
	})

	It("rejects Current() with nothing in scope", func() {
		_, err := program.Current()
		Expect(err).To(HaveOccurred())
		Expect(errkind.Is(err, errkind.NoContext)).To(BeTrue())
	})

	It("With enters, runs fn, and always exits", func() {
		ran := false
		err := program.With("p", collective.AllReduce(2, 1), topology.FullyConnected(2, "t"), func(b *program.Builder) error {
			ran = true
			_, curErr := program.Current()
			Expect(curErr).NotTo(HaveOccurred())
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ran).To(BeTrue())
		_, err = program.Current()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("per-rank buffer state", func() {
	var b *program.Builder

	BeforeEach(func() {
		b = program.New("p", collective.AllReduce(2, 2), topology.FullyConnected(2, "t"))
	})

	It("seeds input slots from the collective's precondition", func() {
		ref, err := b.Rank(0).Input(0, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.Rank).To(Equal(0))
		Expect(ref.Buffer).To(Equal(ir.BufInput))
	})

	It("fails MissingChunk reading an index outside the precondition", func() {
		_, err := b.Rank(0).Input(99, 1)
		Expect(err).To(HaveOccurred())
		Expect(errkind.Is(err, errkind.MissingChunk)).To(BeTrue())
	})

	It("creates and round-trips a scratch buffer by canonical name", func() {
		name, err := b.Rank(0).CreateScratch(4, "reduce")
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("reduce"))

		_, err = b.Rank(0).Scratch(0, "reduce")
		Expect(err).To(HaveOccurred()) // nothing has landed there yet
		Expect(errkind.Is(err, errkind.MissingChunk)).To(BeTrue())
	})

	It("rejects creating the same scratch name twice on one rank", func() {
		_, err := b.Rank(0).CreateScratch(4, "reduce")
		Expect(err).NotTo(HaveOccurred())
		_, err = b.Rank(0).CreateScratch(4, "reduce")
		Expect(err).To(HaveOccurred())
		Expect(errkind.Is(err, errkind.DuplicateScratch)).To(BeTrue())
	})

	It("canonicalizes tuple-shaped scratch names", func() {
		name, err := b.Rank(0).CreateScratch(4, 1, 2, 0)
		Expect(err).NotTo(HaveOccurred())
		_, err = b.Rank(0).Scratch(0, 1, 2, 0)
		Expect(err).To(HaveOccurred()) // unpopulated, but same canonical key resolves
		Expect(name).To(ContainSubstring("1"))
	})
})

var _ = Describe("Ref operations", func() {
	var b *program.Builder

	BeforeEach(func() {
		b = program.New("p", collective.AllReduce(3, 1), topology.FullyConnected(3, "t"))
	})

	It("Send records a matched send/recv pair and lands the chunk at the destination", func() {
		ref, err := b.Rank(0).Input(0, 1)
		Expect(err).NotTo(HaveOccurred())

		dstRef, err := ref.Send(1, ir.BufOutput, -1, -1, -1, -1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(dstRef.Rank).To(Equal(1))
		Expect(dstRef.Hops).To(Equal(ref.Hops + 1))

		dag := b.DAG(0)
		ops := dag.Ops()
		Expect(len(ops)).To(BeNumerically(">=", 2)) // start + send

		var sendOp *ir.Op
		for _, op := range ops {
			if op.Inst == ir.Send {
				sendOp = op
			}
		}
		Expect(sendOp).NotTo(BeNil())
		Expect(sendOp.Match).To(HaveLen(1))

		recvDag := b.DAG(1)
		var recvOp *ir.Op
		for _, op := range recvDag.Ops() {
			if op.Inst == ir.Recv {
				recvOp = op
			}
		}
		Expect(recvOp).NotTo(BeNil())
		Expect(recvOp.Match).To(Equal([]ir.OpID{sendOp.ID}))
		Expect(sendOp.Match).To(Equal([]ir.OpID{recvOp.ID}))
	})

	It("Copy keeps the same rank and chains Hops", func() {
		ref, err := b.Rank(0).Input(0, 1)
		Expect(err).NotTo(HaveOccurred())
		copied, err := ref.Copy(ir.BufOutput, 0, 1, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(copied.Rank).To(Equal(ref.Rank))
		Expect(copied.Buffer).To(Equal(ir.BufOutput))
		Expect(copied.Hops).To(Equal(ref.Hops + 1))
	})

	It("Reduce rejects operands on different ranks", func() {
		a, err := b.Rank(0).Input(0, 1)
		Expect(err).NotTo(HaveOccurred())
		other, err := b.Rank(1).Input(0, 1)
		Expect(err).NotTo(HaveOccurred())

		_, err = a.Reduce(other, 0, 0)
		Expect(err).To(HaveOccurred())
	})

	It("Group merges two contiguous refs and errors on a gap", func() {
		left, err := b.Rank(0).Input(0, 1)
		Expect(err).NotTo(HaveOccurred())

		wide, err := program.New("q", collective.AllReduce(1, 2), topology.FullyConnected(1, "t")).Rank(0).Input(0, 2)
		Expect(err).NotTo(HaveOccurred())
		parts, err := wide.Split(2)
		Expect(err).NotTo(HaveOccurred())
		merged, err := parts[0].Group(parts[1])
		Expect(err).NotTo(HaveOccurred())
		Expect(merged.Size).To(Equal(2))

		_, err = left.Group(left)
		Expect(err).To(HaveOccurred())
	})

	It("Split rejects a size that does not divide evenly", func() {
		ref, err := b.Rank(0).Input(0, 1)
		Expect(err).NotTo(HaveOccurred())
		_, err = ref.Split(3)
		Expect(err).To(HaveOccurred())
		Expect(errkind.Is(err, errkind.BadSplit)).To(BeTrue())
	})
})

var _ = Describe("Check", func() {
	It("reports false when a postcondition output slot is never written", func() {
		b := program.New("p", collective.AllReduce(2, 1), topology.FullyConnected(2, "t"))
		Expect(b.Check()).To(BeFalse())
	})

	It("reports true once every postcondition slot has landed", func() {
		b := program.New("p", collective.AllReduce(2, 1), topology.FullyConnected(2, "t"))
		for _, r := range []int{0, 1} {
			ref, err := b.Rank(r).Input(0, 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = ref.Copy(ir.BufOutput, 0, 1, 0, 0)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(b.Check()).To(BeTrue())
	})
})
