package workload

// Each script runs identically on both the server and client pod; ROLE,
// PEER_HOST, RDMA_DEVICE, UCX_TLS, and UCX_GID_INDEX are injected as
// container env vars so one script body covers both sides of the pair.

const nixlTransferScript = `#!/bin/sh
set -eu
echo "nixl-transfer: role=$ROLE peer=$PEER_HOST device=$RDMA_DEVICE"
export UCX_TLS="$UCX_TLS"
export UCX_NET_DEVICES="$RDMA_DEVICE"
python3 -m nixl_test --role "$ROLE" --peer "$PEER_HOST" --gid-index "$UCX_GID_INDEX"
`

const deepgemmMinimalScript = `#!/bin/sh
set -eu
echo "deepgemm-minimal: role=$ROLE"
python3 -c "import deep_gemm; import torch; assert torch.cuda.is_available()"
`

const deepgemmSimpleScript = `#!/bin/sh
set -eu
echo "deepgemm-simple: role=$ROLE"
python3 -m deep_gemm.tests.test_fp8_gemm
python3 -m deep_gemm.tests.test_m_grouped_fp8_gemm
`

const pplxKernelsScript = `#!/bin/sh
set -eu
echo "pplx-kernels: role=$ROLE peer=$PEER_HOST"
git clone --depth 1 https://github.com/ppl-ai/pplx-kernels.git /tmp/pplx-kernels
pip install -e /tmp/pplx-kernels
python3 -m pplx_kernels.bench.all_to_all --role "$ROLE" --peer "$PEER_HOST"
`

const deepepInternodeScript = `#!/bin/sh
set -eu
echo "deepep-internode: role=$ROLE peer=$PEER_HOST device=$RDMA_DEVICE"
export UCX_TLS="$UCX_TLS"
export NVSHMEM_IB_ENABLE_IBGDA=1
python3 -m deep_ep.tests.test_internode --role "$ROLE" --peer "$PEER_HOST"
`

const deepepIntranodeScript = `#!/bin/sh
set -eu
echo "deepep-intranode: role=$ROLE"
python3 -m deep_ep.tests.test_intranode
`

const deepepLowLatencyScript = `#!/bin/sh
set -eu
echo "deepep-lowlatency: role=$ROLE peer=$PEER_HOST"
python3 -m deep_ep.tests.test_low_latency --role "$ROLE" --peer "$PEER_HOST"
`

const ibWriteBwScript = `#!/bin/sh
set -eu
echo "ib-write-bw: role=$ROLE peer=$PEER_HOST device=$RDMA_DEVICE"
if [ "$ROLE" = "server" ]; then
	exec ib_write_bw -d "$RDMA_DEVICE" --report_gbits
else
	exec ib_write_bw -d "$RDMA_DEVICE" --report_gbits "$PEER_HOST"
fi
`
