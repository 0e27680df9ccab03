// Package biz 提供 NPHIES 检索问答的业务逻辑层。
//
// 该包将检索流程拆分为以下组件：
//   - Loader/Splitter: 读取知识库文件并按滑动窗口切块
//   - Index: 惰性构建且只构建一次的向量索引
//   - QueryEngine: 嵌入问题、检索最近的块、组装双语提示并调用生成模型
//   - AnswerCache: 基于 Redis 的回答缓存
//   - Service: 组合以上组件，提供统一的服务接口
package biz
